package fixture_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/toejough/lambdafix/internal/fixture"
)

func TestAwait_PassesPlainValuesThrough(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	value, err := fixture.Await(context.Background(), "plain")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal("plain"))
}

func TestAwait_WaitsForFuture(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	release := make(chan struct{})
	future := fixture.Go(func() (int, error) {
		<-release
		return 42, nil
	})

	g.Expect(future.Done()).To(BeFalse())
	close(release)

	value, err := fixture.Await(context.Background(), future)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal(42))
	g.Expect(future.Done()).To(BeTrue())
}

func TestAwait_ReturnsFutureError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	boom := errors.New("boom")

	_, err := fixture.Await(context.Background(), fixture.Go(func() (string, error) { return "", boom }))
	g.Expect(err).To(MatchError(boom))
}

func TestAwait_StopsWhenContextIsDone(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	block := make(chan struct{})
	defer close(block)

	future := fixture.Go(func() (int, error) {
		<-block
		return 0, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fixture.Await(ctx, future)
	g.Expect(err).To(MatchError(context.Canceled))
}

func TestReady_IsAlreadyDone(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	future := fixture.Ready("now")
	g.Expect(future.Done()).To(BeTrue())

	value, err := future.Await(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal("now"))
}
