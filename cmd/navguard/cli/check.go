package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tkingovr/navguard/internal/guard"
)

var checkLoggedIn bool

var checkCmd = &cobra.Command{
	Use:   "check URL",
	Short: "Dry-run a navigation decision",
	Long: `Check what decision a navigation would receive without running the proxy.
Without --logged-in, the login state is read from the token store.`,
	Example: `  navguard check -c navguard.yaml '/pages/order/detail?id=7'
  navguard check /pages/secret/index --logged-in`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkLoggedIn, "logged-in", false, "treat the user as logged in")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := guardOptions(cfg)
	if err != nil {
		return err
	}

	if checkLoggedIn {
		opts.CheckLogin = func() bool { return true }
	}
	gc := guard.NewConfig(opts)

	var loginURL string
	dry := gc.WithHandlers(nil, func(to string) { loginURL = gc.LoginURL(to) })

	res := guard.DecideContext(context.Background(), args[0], dry)
	resp := res.ToCheckResponse()
	resp.LoginURL = loginURL

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}
