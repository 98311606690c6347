package main

import (
	"fmt"

	"github.com/yarikc/composer/internal/ast"
)

// Deployer is the deployment client's contract: spec.md §1 treats "the
// deployment client that talks to the platform's management API" as an
// external collaborator, so this interface is the seam. A real
// implementation would issue authenticated HTTP calls against Config's
// APIHost using Config's Auth token; that network code is the
// deployment collaborator's job and is out of this module's scope.
type Deployer interface {
	DeleteAction(name string) error
	UpdateAction(name string, action ast.AttachedAction) error
}

// unimplementedDeployer reports that no real management-API client is
// wired in. cmd/composer exercises the orchestration below against it
// in tests; a host wiring a real client swaps this out for one that
// actually talks to apihost.
type unimplementedDeployer struct {
	apihost string
}

func (u *unimplementedDeployer) DeleteAction(name string) error {
	return fmt.Errorf("composer: no deployment client configured for apihost %q (delete %s)", u.apihost, name)
}

func (u *unimplementedDeployer) UpdateAction(name string, _ ast.AttachedAction) error {
	return fmt.Errorf("composer: no deployment client configured for apihost %q (update %s)", u.apihost, name)
}

// Deploy publishes every attached action in c, serially, in the order
// spec.md §5 mandates: "for each attached action, it first attempts a
// delete (ignoring not-found) and then an update, ordered to ensure
// at-most-once final state per attachment." notFound reports whether
// an error returned by DeleteAction means "nothing to delete" (and so
// should not abort the deploy) versus a genuine failure.
func Deploy(d Deployer, c *ast.Composition, notFound func(error) bool) error {
	for _, att := range c.Attached {
		if att.Action.Kind != ast.KindAction {
			return fmt.Errorf("composer: attachment %q is not encoded; call Encode first", att.Name)
		}
		if err := d.DeleteAction(att.Name); err != nil && (notFound == nil || !notFound(err)) {
			return fmt.Errorf("deleting %q: %w", att.Name, err)
		}
		if err := d.UpdateAction(att.Name, att.Action); err != nil {
			return fmt.Errorf("updating %q: %w", att.Name, err)
		}
	}
	return nil
}
