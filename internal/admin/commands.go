// Package admin implements vaultctl, the operator CLI for bucketvault:
// schema migrations, master key rotation and per-user quota changes.
package admin

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/bucketvault/internal/buildinfo"
	"github.com/dmitrijs2005/bucketvault/internal/common"
	"github.com/dmitrijs2005/bucketvault/internal/cryptox"
	"github.com/dmitrijs2005/bucketvault/internal/logging"
	"github.com/dmitrijs2005/bucketvault/internal/server/config"
	"github.com/dmitrijs2005/bucketvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bucketvault/internal/server/services"
	"github.com/spf13/cobra"
)

// Seams for tests.
var (
	openDB     = repomanager.OpenDB
	newManager = func() repomanager.RepositoryManager {
		return repomanager.NewPostgresRepositoryManager()
	}
)

type options struct {
	configFile string
	dsn        string
}

func (o *options) load() (*config.Config, error) {
	cfg := &config.Config{}
	cfg.LoadDefaults()

	if o.configFile != "" {
		if err := config.ApplyFile(o.configFile, cfg); err != nil {
			return nil, err
		}
	}
	if o.dsn != "" {
		cfg.DatabaseDSN = o.dsn
	}
	return cfg, nil
}

// session is what every database command needs.
type session struct {
	cfg     *config.Config
	db      *sql.DB
	manager repomanager.RepositoryManager
	logger  logging.Logger
}

func (o *options) open(cmd *cobra.Command) (*session, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}

	db, err := openDB(cmd.Context(), cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:     cfg,
		db:      db,
		manager: newManager(),
		logger:  logging.NewJSONLogger(cmd.ErrOrStderr(), cfg.LogLevel).With("module", "vaultctl"),
	}, nil
}

func (s *session) close() {
	_ = s.db.Close()
}

// NewRootCmd builds the vaultctl command tree.
func NewRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:          "vaultctl",
		Short:        "Administer a bucketvault deployment",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&o.configFile, "config", "c", "", "config file path (JSON or YAML)")
	root.PersistentFlags().StringVarP(&o.dsn, "dsn", "d", "", "database DSN, overrides the config file")

	root.AddCommand(
		newMigrateCmd(o),
		newRekeyCmd(o),
		newSetLimitCmd(o),
		newVersionCmd(),
	)
	return root
}

func newMigrateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.manager.RunMigrations(cmd.Context(), s.db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}

func newRekeyCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rekey",
		Short: "Re-encrypt every stored bucket secret under a new encryption key",
		Long: `Re-encrypt every stored bucket secret under a new encryption key.

The current key is read from the terminal; leave it empty to use the key from
the configuration. All rows are rewritten in one transaction, so a single
unreadable secret leaves the database untouched.

After a successful run, put the new key into the server configuration and
restart the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			prompts := cmd.ErrOrStderr()

			current, err := GetSecret(prompts, "Current encryption key (empty to use config): ")
			if err != nil {
				return err
			}
			oldKey := string(current)
			common.WipeByteArray(current)
			if oldKey == "" {
				oldKey = s.cfg.EncryptionKey
			}

			newKey, err := GetNewSecret(prompts, "New encryption key: ", "Repeat new encryption key: ")
			if err != nil {
				return err
			}
			if newKey == oldKey {
				return errors.New("new key equals the current key")
			}

			from, err := cryptox.NewCipher(oldKey)
			if err != nil {
				return err
			}
			to, err := cryptox.NewCipher(newKey)
			if err != nil {
				return err
			}

			svc := services.NewBucketService(s.db, s.manager, from, s.logger)
			n, err := svc.Rekey(cmd.Context(), from, to)
			if err != nil {
				return fmt.Errorf("rekey aborted, nothing changed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Re-encrypted %d bucket secret(s)\n", n)
			return nil
		},
	}
}

func newSetLimitCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set-limit <email> <limit>",
		Short: "Change how many buckets a user may connect (-1 is unlimited)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := args[0]
			limit, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid limit %q", args[1])
			}

			s, err := o.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			svc := services.NewUserService(s.db, s.manager, s.cfg, s.logger)
			if err := svc.SetBucketLimit(cmd.Context(), email, limit); err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					return fmt.Errorf("no user with email %s", email)
				}
				return err
			}

			if limit == services.UnlimitedBuckets {
				fmt.Fprintf(cmd.OutOrStdout(), "Bucket limit for %s set to unlimited\n", email)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Bucket limit for %s set to %d\n", email, limit)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}
}
