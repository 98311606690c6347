// Command composer is the thin external front-end spec.md §6.3
// describes: read a serialized composition document, then either print
// it back out (default), emit a standalone conductor source (--encode),
// or compile and publish it under a name (--deploy). It carries no
// combinator logic of its own — building a composition happens in Go
// code that calls internal/ast, the way the teacher's own cli/main.go
// is a cobra wrapper around lexing/parsing/planning it does not itself
// implement.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yarikc/composer/internal/ast"
	"github.com/yarikc/composer/internal/composer"
	"github.com/yarikc/composer/internal/serial"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "composer: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		deployName string
		encode     bool
		apihost    string
		auth       string
		insecure   bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "composer FILE",
		Short: "Compile and deploy serverless function compositions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deployName != "" && encode {
				return fmt.Errorf("--deploy and --encode are mutually exclusive")
			}
			comp, err := readComposition(args[0])
			if err != nil {
				return err
			}

			switch {
			case deployName != "":
				cfg, err := resolveConfig(configPath, apihost, auth, insecure)
				if err != nil {
					return err
				}
				return runDeploy(cmd, comp, deployName, cfg)
			case encode:
				return runEncode(cmd, comp)
			default:
				return runPrint(cmd, comp)
			}
		},
	}

	cmd.Flags().StringVar(&deployName, "deploy", "", "compile and publish the composition under NAME")
	cmd.Flags().BoolVar(&encode, "encode", false, "emit the conductor source for an anonymous composition")
	cmd.Flags().StringVar(&apihost, "apihost", "", "platform management API host")
	cmd.Flags().StringVar(&auth, "auth", "", "platform management API auth key")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS verification against apihost")
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "path to a YAML credentials file")

	return cmd
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".composer", "config.yaml")
}

func resolveConfig(path, apihost, auth string, insecure bool) (Config, error) {
	if path == "" {
		return Config{}.merge(apihost, auth, insecure), nil
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return Config{}, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg.merge(apihost, auth, insecure), nil
}

// readComposition loads the spec.md §6.1 serialized-composition JSON
// document from path and decodes it into an *ast.Composition. This is
// the only external, file-resident representation of a composition
// this module defines; building one from scratch happens by calling
// internal/ast directly from Go code, not from a text DSL.
func readComposition(path string) (*ast.Composition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	comp, err := serial.UnmarshalJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return comp, nil
}

// runPrint is the default mode: emit the serialized composition as
// pretty-printed JSON, per spec.md §6.3 ("absent both, emit the
// serialized composition as pretty-printed JSON").
func runPrint(cmd *cobra.Command, comp *ast.Composition) error {
	data, err := serial.MarshalJSON(comp)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// runEncode elevates comp to an anonymous attached action (if it is not
// already a single named action) and prints the conductor source Encode
// produced for it.
func runEncode(cmd *cobra.Command, comp *ast.Composition) error {
	target := comp
	named := false
	if root, ok := comp.Tree().(*ast.Action); ok {
		for _, att := range comp.Attached {
			named = named || att.Name == root.Name
		}
	}
	if !named {
		lifted, err := ast.Lift(comp)
		if err != nil {
			return err
		}
		target = lifted
	}

	encoded, err := composer.Encode(target, "")
	if err != nil {
		return err
	}

	action, ok := encoded.Tree().(*ast.Action)
	if !ok {
		return fmt.Errorf("composer: internal error, encode did not produce a named action")
	}
	for _, att := range encoded.Attached {
		if att.Name == action.Name {
			fmt.Fprintln(cmd.OutOrStdout(), att.Action.Exec.Code)
			return nil
		}
	}
	return fmt.Errorf("composer: no attachment found for encoded action %q", action.Name)
}

// runDeploy compiles comp under name and publishes every resulting
// attached action through a Deployer built from cfg.
func runDeploy(cmd *cobra.Command, comp *ast.Composition, deployName string, cfg Config) error {
	encoded, err := composer.Encode(comp, deployName)
	if err != nil {
		return err
	}

	deployer := &unimplementedDeployer{apihost: cfg.APIHost}
	if err := Deploy(deployer, encoded, isNotFound); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "deployed %d action(s) under %q to %s\n", len(encoded.Attached), deployName, cfg.APIHost)
	return nil
}

// isNotFound reports whether err represents "no such action to
// delete" rather than a genuine deployment failure. The stub Deployer
// never returns this distinction today; a real client would use its
// management API's not-found status here, per spec.md §5's "ignoring
// not-found" instruction.
func isNotFound(err error) bool {
	return false
}
