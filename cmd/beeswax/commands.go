package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cinema6/beeswax-client/pkg/beeswax"
)

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "beeswax",
		Short:         "Talk to the Beeswax REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfg.APIRoot, "api-root", a.cfg.APIRoot, "Beeswax API root URL")
	root.PersistentFlags().StringVar(&a.cfg.Account, "account", a.cfg.Account, "account whose credentials are read from the secrets store")
	root.SetOut(a.out)

	root.AddCommand(
		authCommand(a),
		findCommand(a),
		queryCommand(a, "query", "Query one page of a resource", false),
		queryCommand(a, "query-all", "Query every page of a resource", true),
		createCommand(a),
		editCommand(a),
		deleteCommand(a),
		uploadAssetCommand(a),
		accountsCommand(a),
	)
	return root
}

var resourceHelp = "resource: " + strings.Join(beeswax.ResourceNames(), ", ")

func authCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Log in and report success",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Authenticate(cmd.Context()); err != nil {
				return err
			}
			return a.print(map[string]any{"success": true, "api_root": c.APIRoot()})
		},
	}
}

func findCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find <resource> <id>",
		Short: "Fetch one entity by id",
		Long:  resourceHelp,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			r, err := a.resource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := r.Find(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
}

func queryCommand(a *app, use, short string, all bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <resource> [filter-json]",
		Short: short,
		Long:  resourceHelp,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter beeswax.Entity
			if len(args) == 2 {
				var err error
				if filter, err = parseObject(args[1]); err != nil {
					return err
				}
			}
			r, err := a.resource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			query := r.Query
			if all {
				query = r.QueryAll
			}
			res, err := query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
}

func createCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <resource> <body-json>",
		Short: "Create an entity and print it",
		Long:  resourceHelp,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := parseObject(args[1])
			if err != nil {
				return err
			}
			r, err := a.resource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := r.Create(cmd.Context(), body)
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
}

func editCommand(a *app) *cobra.Command {
	var failOnNotFound bool
	cmd := &cobra.Command{
		Use:   "edit <resource> <id> <body-json>",
		Short: "Update an entity and print it",
		Long:  resourceHelp,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			body, err := parseObject(args[2])
			if err != nil {
				return err
			}
			r, err := a.resource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := r.Edit(cmd.Context(), id, body, failOnNotFound)
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	cmd.Flags().BoolVar(&failOnNotFound, "fail-on-not-found", false, "fail instead of reporting success:false when the entity does not exist")
	return cmd
}

func deleteCommand(a *app) *cobra.Command {
	var failOnNotFound bool
	cmd := &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete an entity and print what was deleted",
		Long:  resourceHelp,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			r, err := a.resource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := r.Delete(cmd.Context(), id, failOnNotFound)
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	cmd.Flags().BoolVar(&failOnNotFound, "fail-on-not-found", false, "fail instead of reporting success:false when the entity does not exist")
	return cmd
}

func uploadAssetCommand(a *app) *cobra.Command {
	var (
		p    beeswax.UploadParams
		file string
	)
	cmd := &cobra.Command{
		Use:   "upload-asset",
		Short: "Upload a creative asset from a URL or a local file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				p.ContentBytes = data
			}
			c, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			asset, err := c.UploadCreativeAsset(cmd.Context(), p)
			if err != nil {
				return err
			}
			return a.print(asset)
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.SourceURL, "source-url", "", "URL to fetch the asset from")
	f.StringVar(&file, "file", "", "local file to upload instead of a URL (requires --name)")
	f.Int64Var(&p.AdvertiserID, "advertiser-id", 0, "owning advertiser")
	f.StringVar(&p.CreativeAssetName, "name", "", "asset name (defaults to the last path segment of --source-url)")
	f.StringVar(&p.Notes, "notes", "", "asset notes")
	f.BoolVar(&p.Active, "active", false, "mark the asset active")
	cmd.MarkFlagsOneRequired("source-url", "file")
	return cmd
}

func accountsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List accounts with Beeswax credentials in the secrets store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.secretsResolver(cmd.Context())
			if err != nil {
				return err
			}
			accounts, err := r.DiscoverAccounts(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(accounts)
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parseObject decodes a JSON object argument.
func parseObject(s string) (beeswax.Entity, error) {
	var obj beeswax.Entity
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON object %q: %w", s, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("invalid JSON object %q", s)
	}
	return obj, nil
}
