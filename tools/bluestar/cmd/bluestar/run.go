package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/domini04/bluestar/pkg/config"
	"github.com/domini04/bluestar/runtime/workflow"
	"github.com/domini04/bluestar/sdk"
)

const (
	flagRepo           = "repo"
	flagCommit         = "commit"
	flagInstructions   = "instructions"
	flagNonInteractive = "non-interactive"
)

var runCmd = &cobra.Command{
	Use:   "run [owner/repo sha [| instructions]]",
	Short: "Write a blog post about a commit",
	Long: `Fetch a commit, draft a blog post about it and walk through review and
publishing. The commit is given either as arguments:

  bluestar run octo/widgets 9fceb02d0ae598e95dc970b74767f19372d61af8 "| focus on the cache"

or with --repo and --commit.`,
	RunE: runWorkflow,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.String(flagRepo, "", "repository as owner/repo or a GitHub URL")
	f.String(flagCommit, "", "full 40-character commit SHA")
	f.String(flagInstructions, "", "extra guidance for the writer")
	f.String(config.FlagPublish, "", "publish without asking: ghost, notion, local or discard")
	f.Int(config.FlagMaxIterations, 0, "maximum review passes")
	f.Bool(flagNonInteractive, false, "never prompt; suspend at review and publishing instead")

	// Configuration overrides
	f.String(config.FlagProvider, "", "LLM provider: openai, claude, gemini or mock")
	f.String(config.FlagModel, "", "model name (provider default when empty)")
	f.String(config.FlagOutputDir, "", "directory for local HTML drafts")
	f.String(config.FlagPromptsDir, "", "directory of prompt manifests overriding the built-in ones")
	f.String(config.FlagMetricsAddr, "", "serve Prometheus metrics on this address, e.g. :9090")
	f.String(config.FlagOTLPEndpoint, "", "export traces to this OTLP/HTTP endpoint")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(cmd, args)
	if err != nil {
		return err
	}

	ctx, sess, err := openSession(cmd.Context(), cmd, interactive(cmd))
	if err != nil {
		return err
	}
	defer sess.close()

	res, err := sess.engine.Run(ctx, req)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

// buildRequest reads the commit from the arguments or the flags. Flags win.
func buildRequest(cmd *cobra.Command, args []string) (sdk.Request, error) {
	var req sdk.Request
	if len(args) > 0 {
		inv, err := workflow.ParseInvocation(strings.Join(args, " "))
		if err != nil {
			return req, err
		}
		req = sdk.Request{Repo: inv.Repo, Commit: inv.Commit, Instructions: inv.Instructions}
	}

	f := cmd.Flags()
	if f.Changed(flagRepo) {
		req.Repo, _ = f.GetString(flagRepo)
	}
	if f.Changed(flagCommit) {
		req.Commit, _ = f.GetString(flagCommit)
	}
	if f.Changed(flagInstructions) {
		req.Instructions, _ = f.GetString(flagInstructions)
	}
	if req.Repo == "" && req.Commit == "" {
		return req, errors.New("a repository and commit are required, as arguments or with --repo and --commit")
	}
	// publish and max-iterations reach the run through the configuration.
	return req, nil
}
