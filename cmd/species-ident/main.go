package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jefmud/species-ident/internal/app"
)

func main() {
	if err := rootCommand(app.LoadConfig()).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand(cfg app.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "species-ident",
		Short:         "Camera-trap species identification service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&cfg.DatabaseURL, "database-url", "d", cfg.DatabaseURL, "PostgreSQL URL, or memory:// for an in-memory store")
	rootCmd.PersistentFlags().IntVar(&cfg.CatalogSize, "catalog-size", cfg.CatalogSize, "known number of images (0 derives it from the store)")

	rootCmd.AddCommand(
		serveCommand(&cfg),
		initDBCommand(&cfg),
		createSuperuserCommand(&cfg),
		loadImagesCommand(&cfg),
		loadSpeciesCommand(&cfg),
		auditUsersCommand(&cfg),
	)
	return rootCmd
}

func serveCommand(cfg *app.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Printf("Listening on :%s", cfg.Port)
			return app.Run(*cfg)
		},
	}
	cmd.Flags().StringVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP port")
	return cmd
}

func initDBCommand(cfg *app.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the database schema if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenStore(cmd.Context(), *cfg)
			if err != nil {
				return err
			}
			store.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "** database initialized **")
			return nil
		},
	}
}

func withServices(cmd *cobra.Command, cfg *app.Config, fn func(ctx context.Context, svc *app.Services) error) error {
	svc, err := app.Setup(cmd.Context(), *cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(cmd.Context(), svc)
}

func prompt(r *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprintf(w, "Enter %s: ", label)
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func createSuperuserCommand(cfg *app.Config) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			for _, f := range []struct {
				label string
				value *string
			}{
				{"username", &username},
				{"email", &email},
				{"password", &password},
			} {
				if *f.value != "" {
					continue
				}
				v, err := prompt(in, out, f.label)
				if err != nil {
					return err
				}
				*f.value = v
			}

			return withServices(cmd, cfg, func(ctx context.Context, svc *app.Services) error {
				user, err := svc.Users.CreateSuperuser(ctx, username, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "** superuser %s created **\n", user.Username)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	return cmd
}

func loadImagesCommand(cfg *app.Config) *cobra.Command {
	var site string

	cmd := &cobra.Command{
		Use:   "load-images FILE",
		Short: "Load image paths from a fixture file, skipping known paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return withServices(cmd, cfg, func(ctx context.Context, svc *app.Services) error {
				res, err := svc.Catalog.LoadImages(ctx, f, cfg.ImageBaseURL, site)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "loaded %d images, skipped %d\n", res.Loaded, res.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&cfg.ImageBaseURL, "base-url", cfg.ImageBaseURL, "base URL the image paths are relative to")
	cmd.Flags().StringVar(&site, "site", "", "site tag for the loaded images")
	return cmd
}

func loadSpeciesCommand(cfg *app.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "load-species FILE",
		Short: "Load species records from a JSON fixture, skipping known names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return withServices(cmd, cfg, func(ctx context.Context, svc *app.Services) error {
				res, err := svc.Catalog.LoadSpecies(ctx, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "loaded %d species, skipped %d\n", res.Loaded, res.Skipped)
				return nil
			})
		},
	}
}

func auditUsersCommand(cfg *app.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "audit-users",
		Short: "Rehash any plaintext passwords",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, cfg, func(ctx context.Context, svc *app.Services) error {
				fixed, err := svc.Users.AuditPasswords(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User audit completed, %d passwords rehashed\n", fixed)
				return nil
			})
		},
	}
}
