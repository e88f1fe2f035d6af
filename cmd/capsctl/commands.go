package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/app"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/document"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/export"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-caps-intake/pkg/utilities"
)

type cli struct {
	out    io.Writer
	logger *zap.SugaredLogger
	app    *app.App
}

// run executes one capsctl invocation and always releases the store.
func run(args []string, out io.Writer) error {
	c := &cli{out: out}
	err := c.rootCmd(args).Execute()
	if c.app != nil {
		_ = c.logger.Sync()
		if cerr := c.app.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (c *cli) rootCmd(args []string) *cobra.Command {
	root := &cobra.Command{
		Use:          "capsctl",
		Short:        "Administer the CAPS intake store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			lg, err := utilities.Init(utilities.ConfigFromEnv())
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			c.logger = lg.Sugar()
			c.app, err = app.Open(cmd.Context(), app.ConfigFromEnv(), c.logger)
			return err
		},
	}
	root.SetOut(c.out)
	root.SetArgs(args)

	root.AddCommand(c.bootstrapCmd())
	root.AddCommand(c.userCmd())
	root.AddCommand(c.exportCmd())
	root.AddCommand(c.renderCmd())
	return root
}

// bootstrapCmd opens the store, which creates the schema and the bootstrap
// administrator when missing.
func (c *cli) bootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the schema and the bootstrap administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := c.app.Users.FindByUsername(cmd.Context(), entity.BootstrapUsername)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "store ready; administrator %q has id %d\n", admin.Username, admin.ID)
			return nil
		},
	}
}

func (c *cli) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage identities",
	}

	var password, role string
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.app.Users.Create(cmd.Context(), args[0], password, entity.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "created %s (id %d, role %s)\n", u.Username, u.ID, u.Role)
			return nil
		},
	}
	add.Flags().StringVar(&password, "password", "", "initial password")
	add.Flags().StringVar(&role, "role", string(entity.RoleUser), "user or admin")
	_ = add.MarkFlagRequired("password")

	list := &cobra.Command{
		Use:   "list",
		Short: "List identities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := c.app.Users.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintf(c.out, "%d\t%s\t%s\n", u.ID, u.Username, u.Role)
			}
			return nil
		},
	}

	var newPassword string
	passwd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Set the password of an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.app.Users.FindByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if _, err := c.app.Users.UpdateCredentials(cmd.Context(), u.ID, user.CredentialsUpdate{Password: &newPassword}); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "password updated for %s\n", u.Username)
			return nil
		},
	}
	passwd.Flags().StringVar(&newPassword, "password", "", "new password")
	_ = passwd.MarkFlagRequired("password")

	cmd.AddCommand(add, list, passwd)
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var format, name, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the assessment listing as csv or xlsx",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := c.app.Assessments.FilterByName(cmd.Context(), name)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := export.Write(&buf, format, items); err != nil {
				return err
			}
			if outPath == "" {
				outPath = export.FileName(format)
			}
			if err := writeFile(outPath, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "wrote %d records to %s\n", len(items), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", export.FormatCSV, "csv or xlsx")
	cmd.Flags().StringVar(&name, "name", "", "only patients whose name contains this")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file")
	return cmd
}

func (c *cli) renderCmd() *cobra.Command {
	var format, outPath string
	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Render the checklist document of one assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			a, err := c.app.Assessments.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			doc := document.Render(a)
			switch format {
			case "text":
				if outPath == "" {
					return document.WriteText(c.out, doc)
				}
				var buf bytes.Buffer
				if err := document.WriteText(&buf, doc); err != nil {
					return err
				}
				return writeFile(outPath, buf.Bytes())
			case "pdf":
				var buf bytes.Buffer
				if err := document.WritePDF(&buf, doc); err != nil {
					return err
				}
				if outPath == "" {
					outPath = document.FileName(a)
				}
				if err := writeFile(outPath, buf.Bytes()); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "wrote %s\n", outPath)
				return nil
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "text or pdf")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file")
	return cmd
}

func writeFile(path string, b []byte) error {
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
