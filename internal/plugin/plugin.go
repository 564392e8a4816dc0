// Package plugin turns declarations into host fixtures during collection and
// expands destructured declarations into parametrized tests.
package plugin

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/toejough/lambdafix/internal/core"
	"github.com/toejough/lambdafix/internal/fixture"
	"github.com/toejough/lambdafix/internal/host"
)

// Plugin implements the host's collection and parametrization hooks.
type Plugin struct {
	log *logrus.Logger
}

// New creates a Plugin logging to log.
func New(log *logrus.Logger) *Plugin {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}

	return &Plugin{log: log}
}

// CollectStart processes the declarations of a module.
func (p *Plugin) CollectStart(module *host.Module) error {
	return p.OnModuleOrClassDiscovered(module)
}

// GenerateTests expands destructured declarations for one test.
func (p *Plugin) GenerateTests(mf *host.Metafunc) error {
	return p.OnTestParametrization(mf)
}

// MakeItem processes the declarations of a class.
func (p *Plugin) MakeItem(class *host.Class) error {
	return p.OnModuleOrClassDiscovered(class)
}

// OnModuleOrClassDiscovered converts every declaration visible on node, own
// and inherited, into a fixture definition stored back under the same
// attribute name. Every misconfigured declaration is reported.
func (p *Plugin) OnModuleOrClassDiscovered(node host.Node) error {
	var errs *multierror.Error

	for _, attr := range node.Members() {
		decl, ok := attr.Value.(*core.Declaration)
		if !ok {
			continue
		}

		def, err := p.convert(node, attr.Name, decl)
		if err != nil {
			errs = multierror.Append(errs, err)

			continue
		}

		node.Set(attr.Name, def)
	}

	return errs.ErrorOrNil()
}

// OnTestParametrization finds every fixture in the test's closure that was
// destructured from a parametrized declaration, makes sure all siblings are
// in the closure, and binds them to the source's parameter sets in one
// parametrization per source.
func (p *Plugin) OnTestParametrization(mf *host.Metafunc) error {
	var sources []*core.Declaration

	for _, name := range mf.FixtureNames {
		source := fanoutSource(mf.Defs[name])
		if source == nil || containsDecl(sources, source) {
			continue
		}

		sources = append(sources, source)
	}

	for _, source := range sources {
		cfg := source.Config()
		if len(cfg.Params) == 0 {
			continue
		}

		names, err := source.Fanout().ContributedNames()
		if err != nil {
			return err
		}

		for _, name := range names {
			mf.AddFixtureName(name)
		}

		sets := make([]any, 0, len(cfg.Params))
		for _, set := range source.Fanout().ParamSets() {
			sets = append(sets, set)
		}

		err = mf.Parametrize(names, sets,
			host.ParamScope(cfg.Scope), host.ParamIDs(cfg.IDs...), host.ParamIDFunc(cfg.IDFunc))
		if err != nil {
			return fmt.Errorf("destructured fixtures %v: %w", names, err)
		}

		p.log.WithFields(logrus.Fields{
			"test":     mf.Function.Name,
			"fixtures": names,
			"sets":     len(sets),
		}).Debug("parametrized destructured fixtures")
	}

	return nil
}

// TryFirst runs the parametrization hook before the host's own, which reads
// the closure this hook extends.
func (p *Plugin) TryFirst() bool {
	return true
}

func (p *Plugin) convert(node host.Node, attrName string, decl *core.Declaration) (*host.FixtureDef, error) {
	err := decl.ContributeToParent(node, attrName)
	if err != nil {
		return nil, err
	}

	impl := decl.Func()
	if node.IsClass() && !decl.Bind() {
		impl = fixture.DropFirst(attrName, impl)
	}

	cfg := decl.Config()

	def := &host.FixtureDef{
		Name:    decl.RegisteredName(),
		Func:    impl,
		Scope:   cfg.Scope,
		Autouse: cfg.Autouse,
		IDs:     cfg.IDs,
		IDFunc:  cfg.IDFunc,
		Owner:   node,
		Origin:  decl,
	}

	// Children are parametrized by their source instead.
	if decl.FanoutSource() == nil {
		def.Params = cfg.Params
	}

	p.log.WithFields(logrus.Fields{
		"fixture": def.Name,
		"owner":   node.OwnerName(),
		"params":  impl.Params,
	}).Debug("registered lambda fixture")

	return def, nil
}

func containsDecl(decls []*core.Declaration, decl *core.Declaration) bool {
	for _, d := range decls {
		if d == decl {
			return true
		}
	}

	return false
}

// fanoutSource returns the source of the definition the host will use.
func fanoutSource(defs []*host.FixtureDef) *core.Declaration {
	if len(defs) == 0 {
		return nil
	}

	decl, ok := defs[len(defs)-1].Origin.(*core.Declaration)
	if !ok {
		return nil
	}

	return decl.FanoutSource()
}
