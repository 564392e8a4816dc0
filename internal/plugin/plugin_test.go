package plugin_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/toejough/lambdafix/internal/core"
	"github.com/toejough/lambdafix/internal/fixture"
	"github.com/toejough/lambdafix/internal/host"
	"github.com/toejough/lambdafix/internal/plugin"
)

func TestPlugin_RefInClass_AliasesClassFixture(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	module := host.NewModule("test_views")
	class := module.Class("TestList", nil)
	class.Fixture("list_url", method(t, func(any) string { return "/v1/users" }))
	class.Set("url", declare(t, core.Ref("list_url")))

	var got string

	class.Test("test_url", fn(t, func(url string) { got = url }, "url"))

	items := collect(t, newSession(), module)
	g.Expect(items).To(HaveLen(1))
	g.Expect(items[0].Run(context.Background(), t)).To(Succeed())
	g.Expect(got).To(Equal("/v1/users"))
}

func TestPlugin_ImplicitDeclaration_AliasesOuterFixture(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	var order []string

	conftest := host.NewModule("conftest")
	conftest.Fixture("setup", fn(t, func() string {
		order = append(order, "setup")
		return "outer"
	}))

	module := host.NewModule("test_mod")
	module.Set("setup", declare(t, nil, core.Autouse()))
	module.Test("test_plain", fn(t, func() { order = append(order, "test") }))

	session := newSession()
	session.AddConftest(conftest)

	items := collect(t, session, module)
	g.Expect(items[0].Run(context.Background(), t)).To(Succeed())
	g.Expect(order).To(Equal([]string{"setup", "test"}))
}

func TestPlugin_DestructuredParams_RunOncePerSet(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	decl := declare(t, nil, core.Params([]any{1, 2, 3}, []any{4, 5, 6}))
	children, err := decl.Iter()
	g.Expect(err).NotTo(HaveOccurred())

	module := host.NewModule("test_mod")
	module.Set("a", children[0])
	module.Set("b", children[1])
	module.Set("c", children[2])

	var got [][]int

	module.Test("test_abc", fn(t, func(a, b, c int) { got = append(got, []int{a, b, c}) }, "a", "b", "c"))

	items := collect(t, newSession(), module)
	g.Expect(ids(items)).To(Equal([]string{"test_mod::test_abc[1-2-3]", "test_mod::test_abc[4-5-6]"}))

	for _, item := range items {
		g.Expect(item.Run(context.Background(), t)).To(Succeed())
	}

	g.Expect(got).To(Equal([][]int{{1, 2, 3}, {4, 5, 6}}))

	_, err = decl.Iter()
	g.Expect(err).To(MatchError(core.ErrDestructure))
}

func TestPlugin_DestructuredSiblings_AreParametrizedTogether(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	decl := declare(t, nil, core.Params(
		fixture.Param("alice", "secret").WithID("alice"),
		fixture.Param("bob", "hunter2"),
	), core.IDs("", "bob"))
	children, err := decl.Iter()
	g.Expect(err).NotTo(HaveOccurred())

	module := host.NewModule("test_login")
	module.Set("username", children[0])
	module.Set("password", children[1])
	module.Fixture("credentials", fn(t, func(user, pass string) string { return user + ":" + pass },
		"username", "password"))

	var users []string

	module.Test("test_user", fn(t, func(username string) { users = append(users, username) }, "username"))

	var creds []string

	module.Test("test_creds", fn(t, func(credentials string) { creds = append(creds, credentials) }, "credentials"))

	items := collect(t, newSession(), module)
	g.Expect(ids(items)).To(Equal([]string{
		"test_login::test_user[alice]", "test_login::test_user[bob]",
		"test_login::test_creds[alice]", "test_login::test_creds[bob]",
	}))
	g.Expect(items[0].FixtureNames()).To(ContainElement("password"))

	for _, item := range items {
		g.Expect(item.Run(context.Background(), t)).To(Succeed())
	}

	g.Expect(users).To(Equal([]string{"alice", "bob"}))
	g.Expect(creds).To(Equal([]string{"alice:secret", "bob:hunter2"}))
}

func TestPlugin_ParamsWithoutDestructuring_IsParametrizedFixture(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	module := host.NewModule("test_mod")
	module.Set("number", declare(t, nil, core.Params(1, 2, 3), core.IDFunc(func(v any) string {
		if v == 2 {
			return "two"
		}

		return ""
	})))

	var got []int

	module.Test("test_number", fn(t, func(number int) { got = append(got, number) }, "number"))

	items := collect(t, newSession(), module)
	g.Expect(ids(items)).To(Equal([]string{
		"test_mod::test_number[1]", "test_mod::test_number[two]", "test_mod::test_number[3]",
	}))

	for _, item := range items {
		g.Expect(item.Run(context.Background(), t)).To(Succeed())
	}

	g.Expect(got).To(Equal([]int{1, 2, 3}))
}

func TestPlugin_BindAtModuleLevel_FailsCollection(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	module := host.NewModule("test_mod", host.WithFile("test_mod.go"))
	module.Set("first", declare(t, core.Call(func(any) int { return 1 }), core.Bind()))
	module.Set("second", declare(t, core.Call(func(any) int { return 2 }), core.Bind()))
	module.Test("test_first", fn(t, func(int) {}, "first"))

	session := newSession()
	session.AddModule(module)

	_, err := session.Collect()
	g.Expect(err).To(MatchError(host.ErrCollection))
	g.Expect(err).To(MatchError(core.ErrConfiguration))

	var cfgErr *core.ConfigurationError
	g.Expect(errors.As(err, &cfgErr)).To(BeTrue())
	g.Expect(cfgErr.Location).To(Equal("test_mod.go"))
	g.Expect(err.Error()).To(ContainSubstring(`"first"`))
	g.Expect(err.Error()).To(ContainSubstring(`"second"`))
}

func TestPlugin_ScopedFixtureOnDestructuredParams_IsCachedPerSet(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	decl := declare(t, nil, core.Params([]any{1, 10}, []any{2, 20}), core.WithScope(fixture.ScopeModule))
	children, err := decl.Iter()
	g.Expect(err).NotTo(HaveOccurred())

	module := host.NewModule("test_mod")
	module.Set("a", children[0])
	module.Set("b", children[1])
	module.Set("sum", declare(t, core.Call(func(a, b int) int { return a + b }, "a", "b"),
		core.WithScope(fixture.ScopeModule)))

	var sums []int

	module.Test("test_sum", fn(t, func(sum int) { sums = append(sums, sum) }, "sum"))

	items := collect(t, newSession(), module)
	g.Expect(ids(items)).To(Equal([]string{"test_mod::test_sum[1-10]", "test_mod::test_sum[2-20]"}))

	for _, item := range items {
		g.Expect(item.Run(context.Background(), t)).To(Succeed())
	}

	g.Expect(sums).To(Equal([]int{11, 22}))
}

func TestPlugin_UnassignedDestructuredChild_FailsCollection(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	decl := declare(t, nil, core.Params([]any{"u", "p"}))
	children, err := decl.Iter()
	g.Expect(err).NotTo(HaveOccurred())

	module := host.NewModule("test_mod")
	module.Set("username", children[0])
	module.Test("test_user", fn(t, func(string) {}, "username"))

	session := newSession()
	session.AddModule(module)

	_, err = session.Collect()
	g.Expect(err).To(MatchError(core.ErrConfiguration))
	g.Expect(err.Error()).To(ContainSubstring("destructured fixture 2 of 2 was never assigned to an attribute"))
}

func TestPlugin_SharedBindDeclarationAtModuleLevel_FailsCollection(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	shared := declare(t, core.Call(func(any) string { return "thing" }), core.Bind())

	first := host.NewModule("test_first")
	class := first.Class("TestThing", nil)
	class.Set("thing", shared)
	class.Test("test_thing", fn(t, func(string) {}, "thing"))

	second := host.NewModule("test_second", host.WithFile("test_second.go"))
	second.Set("thing", shared)
	second.Test("test_thing", fn(t, func(string) {}, "thing"))

	session := newSession()
	session.AddModule(first, second)

	_, err := session.Collect()
	g.Expect(err).To(MatchError(core.ErrConfiguration))
	g.Expect(err.Error()).To(ContainSubstring("bind cannot be used at the module level"))
}

func TestPlugin_BindInClass_ReceivesInstance(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	type suite struct{ base int }

	module := host.NewModule("test_mod")
	module.Fixture("n", fixture.Value("n", 5))

	class := module.Class("TestSuite", func() any { return &suite{base: 100} })
	class.Set("total", declare(t, core.Call(func(s *suite, n int) int { return s.base + n }, "n"), core.Bind()))

	var got int

	class.Test("test_total", fn(t, func(total int) { got = total }, "total"))

	items := collect(t, newSession(), module)
	g.Expect(items[0].Run(context.Background(), t)).To(Succeed())
	g.Expect(got).To(Equal(105))
}

func TestPlugin_RefOfSeveralNames_YieldsTuple(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	module := host.NewModule("test_mod")
	module.Fixture("x", fixture.Value("x", 1))
	module.Fixture("y", fixture.Value("y", "two"))
	module.Set("pair", declare(t, core.Ref("x", "y")))

	var got []any

	module.Test("test_pair", fn(t, func(pair []any) { got = pair }, "pair"))

	items := collect(t, newSession(), module)
	g.Expect(items[0].Run(context.Background(), t)).To(Succeed())
	g.Expect(got).To(Equal([]any{1, "two"}))
}

func TestPlugin_PlaceholderFixtures_FailWhenRequested(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	module := host.NewModule("test_api")
	module.Fixture("db", fixture.Value("db", "postgres"))

	base := module.Class("Endpoint", nil)
	base.Set("endpoint", mustDecl(t)(core.NotImplemented()))
	base.Test("test_endpoint", fn(t, func(string) {}, "endpoint"))

	users := module.Class("TestUsers", nil).Inherit(base)
	users.Set("endpoint", declare(t, core.Call(func() string { return "/users" })))

	offline := module.Class("TestOffline", nil)
	offline.Set("db", mustDecl(t)(core.Disabled()))
	offline.Test("test_db", fn(t, func(string) {}, "db"))

	items := collect(t, newSession(), module)
	g.Expect(ids(items)).To(Equal([]string{
		"test_api::Endpoint::test_endpoint",
		"test_api::TestUsers::test_endpoint",
		"test_api::TestOffline::test_db",
	}))

	err := items[0].Run(context.Background(), t)
	g.Expect(err).To(MatchError(core.ErrNotImplementedFixture))
	g.Expect(err.Error()).To(ContainSubstring("Please define/override the endpoint fixture in the current context."))

	g.Expect(items[1].Run(context.Background(), t)).To(Succeed())

	err = items[2].Run(context.Background(), t)
	g.Expect(err).To(MatchError(core.ErrDisabledFixture))
	g.Expect(err.Error()).To(ContainSubstring("Usage of the db fixture has been disabled in the current context."))
}

func TestPlugin_AsyncDeclaration_IsAwaited(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	module := host.NewModule("test_mod")
	module.Set("answer", declare(t, core.Call(func() *fixture.Future[int] {
		return fixture.Go(func() (int, error) { return 42, nil })
	}), core.Async()))

	var got int

	module.Test("test_answer", fn(t, func(answer int) { got = answer }, "answer"))

	items := collect(t, newSession(), module)
	g.Expect(items[0].Run(context.Background(), t)).To(Succeed())
	g.Expect(got).To(Equal(42))
}

func TestPlugin_NameOption_RegistersUnderThatName(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	module := host.NewModule("test_mod")
	module.Set("attr", declare(t, core.Call(func() string { return "renamed" }), core.Name("public")))

	var got string

	module.Test("test_public", fn(t, func(public string) { got = public }, "public"))

	items := collect(t, newSession(), module)
	g.Expect(items[0].Run(context.Background(), t)).To(Succeed())
	g.Expect(got).To(Equal("renamed"))
}

func TestOnModuleOrClassDiscovered_Declarations_AreReplaced(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	var buf bytes.Buffer

	log := logrus.New()
	log.SetOutput(&buf)
	log.SetLevel(logrus.DebugLevel)

	module := host.NewModule("test_mod")
	module.Set("plain", 7)
	module.Set("alias", declare(t, core.Ref("plain"), core.WithScope(fixture.ScopeModule)))

	g.Expect(plugin.New(log).OnModuleOrClassDiscovered(module)).To(Succeed())

	value, ok := module.Get("plain")
	g.Expect(ok).To(BeTrue())
	g.Expect(value).To(Equal(7))

	value, ok = module.Get("alias")
	g.Expect(ok).To(BeTrue())

	def, ok := value.(*host.FixtureDef)
	g.Expect(ok).To(BeTrue())
	g.Expect(def.Name).To(Equal("alias"))
	g.Expect(def.Scope).To(Equal(fixture.ScopeModule))
	g.Expect(def.Func.Params).To(Equal([]string{"plain"}))
	g.Expect(def.Owner).To(BeIdenticalTo(module))
	g.Expect(buf.String()).To(ContainSubstring("registered lambda fixture"))
}

func TestOnModuleOrClassDiscovered_SeveralFailures_AreAggregated(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	class := host.NewModule("test_mod").Class("TestBroken", nil)
	class.Set("one", declare(t, core.Ref("x")))

	bad := declare(t, nil)
	g.Expect(bad.ContributeToParent(class, "elsewhere")).To(Succeed())
	class.Set("two", bad)

	err := plugin.New(nil).OnModuleOrClassDiscovered(class)

	var merr *multierror.Error
	g.Expect(errors.As(err, &merr)).To(BeTrue())
	g.Expect(merr.Errors).To(HaveLen(1))
	g.Expect(err).To(MatchError(core.ErrConfiguration))
}

func collect(t *testing.T, session *host.Session, modules ...*host.Module) []*host.Item {
	t.Helper()

	session.AddModule(modules...)

	items, err := session.Collect()
	if err != nil {
		t.Fatal(err)
	}

	return items
}

func declare(t *testing.T, target core.Target, opts ...core.Option) *core.Declaration {
	t.Helper()

	decl, err := core.Declare(target, opts...)
	if err != nil {
		t.Fatal(err)
	}

	return decl
}

func fn(t *testing.T, body any, params ...string) fixture.Func {
	t.Helper()

	f, err := fixture.Adapt("body", body, params...)
	if err != nil {
		t.Fatal(err)
	}

	return f
}

func ids(items []*host.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}

	return out
}

func method(t *testing.T, body any, params ...string) fixture.Func {
	t.Helper()

	f, err := fixture.AdaptMethod("method", body, params...)
	if err != nil {
		t.Fatal(err)
	}

	return f
}

func mustDecl(t *testing.T) func(*core.Declaration, error) *core.Declaration {
	t.Helper()

	return func(decl *core.Declaration, err error) *core.Declaration {
		if err != nil {
			t.Fatal(err)
		}

		return decl
	}
}

func newSession() *host.Session {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	p := plugin.New(log)

	return host.NewSession(host.WithLogger(log), host.WithPlugins(p))
}
