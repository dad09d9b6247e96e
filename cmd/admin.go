package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/frahmantamala/employee-onboarding/internal/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Admin account commands",
}

var setAdminPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Set the admin password",
	Long:  `Prompt for a new admin password and store its hash. A running server ends its admin session on the next request.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		lg := initLogger(cfg)

		stores, err := openStores(ctx, cfg, lg)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer stores.Close()

		_, authService := newServices(cfg, stores, nil, lg)
		if _, err := authService.EnsureAdmin(ctx, ""); err != nil {
			return err
		}

		in := newPasswordReader(os.Stdin)
		password, err := in.read("New admin password: ")
		if err != nil {
			return err
		}
		confirm, err := in.read("Repeat password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return errors.New("passwords do not match")
		}

		if err := authService.SetPassword(ctx, auth.AdminID, auth.SetPasswordDTO{Password: password}); err != nil {
			return err
		}
		fmt.Println("admin password updated")
		return nil
	},
}

// passwordReader reads without echo from a terminal, or line by line from
// a pipe. The line reader is shared so buffered input survives between reads.
type passwordReader struct {
	in    *os.File
	lines *bufio.Reader
}

func newPasswordReader(in *os.File) *passwordReader {
	return &passwordReader{in: in, lines: bufio.NewReader(in)}
}

func (p *passwordReader) read(prompt string) (string, error) {
	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		line, err := p.lines.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func init() {
	adminCmd.AddCommand(setAdminPasswordCmd)
	rootCmd.AddCommand(adminCmd)
}
