package fixture_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/gomega"
	"pgregory.net/rapid"

	"github.com/toejough/lambdafix/internal/fixture"
)

func TestAdapt_CallsFunctionWithArgsInParamOrder(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f, err := fixture.Adapt("sub", func(a, b int) int { return a - b }, "a", "b")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(f.Params).To(Equal([]string{"a", "b"}))

	value, err := f.Call(context.Background(), 10, 3)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal(7))
}

func TestAdapt_ConvertsAndZeroesArguments(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f, err := fixture.Adapt("f", func(x float64, s []string) any {
		return []any{x, len(s)}
	}, "x", "s")
	g.Expect(err).NotTo(HaveOccurred())

	value, err := f.Call(context.Background(), 2, nil)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal([]any{2.0, 0}))
}

func TestAdapt_RejectsArgumentOfWrongType(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f, err := fixture.Adapt("f", func(x int) int { return x }, "x")
	g.Expect(err).NotTo(HaveOccurred())

	_, err = f.Call(context.Background(), "seven")
	g.Expect(err).To(MatchError(fixture.ErrArgumentType))
}

func TestAdapt_RejectsBadFunctions(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name   string
		fn     any
		params []string
		want   error
	}{
		{name: "not a func", fn: 3, want: fixture.ErrNotFunc},
		{name: "nil func", fn: (func())(nil), want: fixture.ErrNotFunc},
		{name: "too few names", fn: func(int, int) {}, params: []string{"a"}, want: fixture.ErrArity},
		{name: "too many names", fn: func() {}, params: []string{"a"}, want: fixture.ErrArity},
		{name: "variadic", fn: func(...int) {}, params: []string{"a"}, want: fixture.ErrArity},
		{name: "two values", fn: func() (int, int) { return 0, 0 }, want: fixture.ErrUnsupportedResults},
		{name: "three results", fn: func() (int, int, error) { return 0, 0, nil }, want: fixture.ErrUnsupportedResults},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			_, err := fixture.Adapt(tc.name, tc.fn, tc.params...)
			g.Expect(err).To(MatchError(tc.want))
		})
	}
}

func TestAdapt_ReturnsErrors(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	boom := errors.New("boom")

	onlyErr, err := fixture.Adapt("only", func() error { return boom })
	g.Expect(err).NotTo(HaveOccurred())

	_, err = onlyErr.Call(context.Background())
	g.Expect(err).To(MatchError(boom))

	pair, err := fixture.Adapt("pair", func() (string, error) { return "partial", boom })
	g.Expect(err).NotTo(HaveOccurred())

	value, err := pair.Call(context.Background())
	g.Expect(err).To(MatchError(boom))
	g.Expect(value).To(Equal("partial"))

	nothing, err := fixture.Adapt("nothing", func() {})
	g.Expect(err).NotTo(HaveOccurred())

	value, err = nothing.Call(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(BeNil())
}

func TestAdaptMethod_TakesUnnamedReceiverFirst(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	type suite struct{ prefix string }

	f, err := fixture.AdaptMethod("greet", func(s *suite, name string) string {
		return s.prefix + name
	}, "name")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(f.Params).To(Equal([]string{"name"}))

	value, err := f.Call(context.Background(), &suite{prefix: "hi "}, "bob")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal("hi bob"))
}

func TestCall_WithoutImplementationFails(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, err := fixture.Func{Name: "empty"}.Call(context.Background())
	g.Expect(err).To(MatchError(fixture.ErrNoImplementation))
}

func TestCallNamed_PicksDeclaredParams(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := fixture.Identity("pair", "b", "a")

	value, err := f.CallNamed(context.Background(), fixture.Kwargs{"a": 1, "b": 2, "c": 3})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal([]any{2, 1}))

	_, err = f.CallNamed(context.Background(), fixture.Kwargs{"a": 1})
	g.Expect(err).To(MatchError(fixture.ErrMissingArgument))
	g.Expect(err.Error()).To(ContainSubstring(`"b"`))
}

func TestDropFirst_DiscardsLeadingArgument(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := fixture.DropFirst("x", fixture.Identity("inner", "x"))
	g.Expect(f.Params).To(Equal([]string{"x"}))

	value, err := f.Call(context.Background(), "instance", 5)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal(5))

	_, err = f.Call(context.Background())
	g.Expect(err).To(MatchError(fixture.ErrArity))
}

func TestIdentity_ForwardsValuesUnchanged(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		names := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,8}`), 1, 6, rapid.ID[string]).Draw(rt, "names")
		values := rapid.SliceOfN(rapid.Int(), len(names), len(names)).Draw(rt, "values")

		args := make([]any, len(values))
		for i, v := range values {
			args[i] = v
		}

		f := fixture.Identity("alias", names...)

		got, err := f.Call(context.Background(), args...)
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}

		if len(names) == 1 {
			if got != args[0] {
				rt.Fatalf("single name: got %v, want %v", got, args[0])
			}

			return
		}

		tuple, ok := got.([]any)
		if !ok || len(tuple) != len(args) {
			rt.Fatalf("tuple: got %#v", got)
		}

		for i := range args {
			if tuple[i] != args[i] {
				rt.Fatalf("position %d: got %v, want %v", i, tuple[i], args[i])
			}
		}
	})
}

func TestIdentity_RejectsWrongArgCount(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, err := fixture.Identity("alias", "a", "b").Call(context.Background(), 1)
	g.Expect(err).To(MatchError(fixture.ErrArity))
}

func TestValue_AlwaysReturnsValue(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := fixture.Value("v", map[string]int{"a": 1})
	g.Expect(f.Params).To(BeEmpty())
	g.Expect(f.Requests("a")).To(BeFalse())

	value, err := f.Call(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal(map[string]int{"a": 1}))
}
