package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/filegate/filegate/internal/cli/output"
	"github.com/filegate/filegate/internal/cli/prompt"
	"github.com/filegate/filegate/pkg/config"
	"github.com/filegate/filegate/pkg/models"
	"github.com/filegate/filegate/pkg/store"
)

var createRole string

var createCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create a user",
	Long: `Create a user directly in the metadata database.

Prompts for a password unless stdin is not a terminal. Admin users bypass
ownership checks and may mint download URLs for files in any state, so
create them sparingly.

Examples:
  # Create a regular user
  filegate user create alice@example.com

  # Create an admin
  filegate user create ops@example.com --role admin`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createRole, "role", string(models.RoleUser), "Role for the new user (user|admin)")
}

// openStore loads config and connects to the metadata database. The user
// subcommands talk to the database directly rather than going through the
// API, so they work before the server is up.
func openStore(cmd *cobra.Command) (*store.GORMStore, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return store.New(cfg.Database.StoreConfig())
}

func runCreate(cmd *cobra.Command, args []string) error {
	email := strings.ToLower(strings.TrimSpace(args[0]))

	role := models.UserRole(createRole)
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q (valid: user, admin)", createRole)
	}

	user := &models.User{
		Email: email,
		Role:  string(role),
	}
	if err := user.Validate(); err != nil {
		return err
	}

	password, err := prompt.NewPassword()
	if err != nil {
		if prompt.IsAborted(err) {
			return nil
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	id, err := st.CreateUser(context.Background(), user)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateUser) {
			return fmt.Errorf("user %q already exists", email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	printer := output.DefaultPrinter()
	printer.Success(fmt.Sprintf("User %q created (id: %s, role: %s)", email, id, role))
	return nil
}
