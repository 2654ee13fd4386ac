package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/alvera-ai/interoperability-template-generator/internal/app"
	"github.com/alvera-ai/interoperability-template-generator/internal/openapi"
)

var (
	specCmd = &cobra.Command{
		Use:   "spec",
		Short: "Load and inspect OpenAPI specs",
	}

	specLoadCmd = &cobra.Command{
		Use:   "load [file]",
		Short: "Parse, store and activate a spec file (yaml or json)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			content, err := readSource(args[0])
			if err != nil {
				return err
			}
			format := string(openapi.FormatFromFilename(args[0], content))
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				summary, err := s.LoadSpec(ctx, content, format, name)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}

	specListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored specs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				specs, err := s.ListSpecs(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), specs)
			})
		},
	}

	specShowCmd = &cobra.Command{
		Use:   "show [name]",
		Short: "Print the stored text of a spec",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				content, err := s.SpecContent(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), content)
				return err
			})
		},
	}

	endpointsCmd = &cobra.Command{
		Use:   "endpoints",
		Short: "List GET endpoints of the active spec",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, s *app.Session) error {
				eps, err := s.ListEndpoints()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), eps)
			})
		},
	}

	schemaCmd = &cobra.Command{
		Use:   "schema [path]",
		Short: "Print the resolved response schema of an endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			return withSession(cmd, true, func(ctx context.Context, s *app.Session) error {
				code, schema, found, err := s.EndpointSchema(args[0], status)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no response schema declared for GET %s", args[0])
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "status %s\n", code)
				return printJSON(cmd.OutOrStdout(), schema)
			})
		},
	}

	callCmd = &cobra.Command{
		Use:   "call [path]",
		Short: "Call a GET endpoint and validate the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, _ := cmd.Flags().GetString("prompt")
			rawParams, _ := cmd.Flags().GetStringArray("param")
			rawHeaders, _ := cmd.Flags().GetStringArray("header")
			status, _ := cmd.Flags().GetString("status")
			record, _ := cmd.Flags().GetBool("record")

			params, err := parsePairs(rawParams)
			if err != nil {
				return err
			}
			headers, err := parsePairs(rawHeaders)
			if err != nil {
				return err
			}
			return withSession(cmd, true, func(ctx context.Context, s *app.Session) error {
				report, err := s.CallEndpoint(ctx, app.CallRequest{
					Path:       args[0],
					Prompt:     prompt,
					Params:     params,
					Headers:    headers,
					StatusCode: status,
					Record:     record,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}

	validateCmd = &cobra.Command{
		Use:   "validate [value.json] [schema.json]",
		Short: "Validate a JSON document against a JSON schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readJSON(args[0])
			if err != nil {
				return err
			}
			schema, err := readJSON(args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				return printJSON(cmd.OutOrStdout(), s.ValidateResponse(value, schema))
			})
		},
	}

	resultsCmd = &cobra.Command{
		Use:   "results",
		Short: "List recorded call results, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				results, err := s.RecentResults(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), results)
			})
		},
	}

	resultCmd = &cobra.Command{
		Use:   "result [id]",
		Short: "Show one recorded call result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid result id %q", args[0])
			}
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				r, err := s.ResultDetails(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), r)
			})
		},
	}

	tableCmd = &cobra.Command{
		Use:   "table",
		Short: "Create, inspect and fill tables",
	}

	tableCreateCmd = &cobra.Command{
		Use:   "create [ddl]",
		Short: "Run a CREATE TABLE statement and record it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			resultID, _ := cmd.Flags().GetInt64("result-id")
			var link *int64
			if resultID > 0 {
				link = &resultID
			}
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				name, err := s.CreateTable(ctx, args[0], reason, link)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "created table %s\n", name)
				return err
			})
		},
	}

	tableListCmd = &cobra.Command{
		Use:   "list",
		Short: "List tables created through the tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				tables, err := s.ListTables(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tables)
			})
		},
	}

	tableShowCmd = &cobra.Command{
		Use:   "show [table]",
		Short: "Show the live column structure of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				st, err := s.TableStructure(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}

	tableInsertCmd = &cobra.Command{
		Use:   "insert [table] [data.json]",
		Short: "Insert a JSON object or array of objects ('-' reads stdin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readJSON(args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				written, err := s.InsertJSON(ctx, args[0], data)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "inserted %d row(s) into %s\n", len(written), args[0])
				return err
			})
		},
	}

	tableRowsCmd = &cobra.Command{
		Use:   "rows [table]",
		Short: "Print rows of a table, optionally filtered with --where",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			where, _ := cmd.Flags().GetStringArray("where")
			filters, err := parsePairs(where)
			if err != nil {
				return err
			}
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				rows, err := s.ListRows(ctx, args[0], filters, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rows)
			})
		},
	}

	templateCmd = &cobra.Command{
		Use:   "template",
		Short: "Generate, store and apply conversion templates",
	}

	templateGenerateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Ask the model for conversion logic and test-run it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraft(cmd, func(s *app.Session) draftFunc { return s.GenerateTemplate })
		},
	}

	templateProposeCmd = &cobra.Command{
		Use:   "propose",
		Short: "Build name-matched mapping rules without a model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraft(cmd, func(s *app.Session) draftFunc { return s.ProposeMapping })
		},
	}

	templateListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				ts, err := s.ListTemplates(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), ts)
			})
		},
	}

	templateShowCmd = &cobra.Command{
		Use:   "show [name]",
		Short: "Show a stored template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				t, err := s.Template(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), t)
			})
		},
	}

	templateApplyCmd = &cobra.Command{
		Use:   "apply [name] [input.json]",
		Short: "Run a stored template on an input document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, _ := cmd.Flags().GetString("table")
			input, err := readJSON(args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, false, func(ctx context.Context, s *app.Session) error {
				out, err := s.ApplyTemplate(ctx, args[0], input, table)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the itgctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "itgctl version %s\n", version)
		},
	}
)

type draftFunc func(context.Context, app.TemplateRequest) (*app.TemplateDraft, error)

// runDraft collects the template flags shared by generate and propose.
func runDraft(cmd *cobra.Command, pick func(*app.Session) draftFunc) error {
	flags := cmd.Flags()
	req := app.TemplateRequest{}
	req.TemplateName, _ = flags.GetString("name")
	req.Path, _ = flags.GetString("path")
	req.StatusCode, _ = flags.GetString("status")
	req.DDL, _ = flags.GetString("ddl")
	req.TableName, _ = flags.GetString("table")
	req.Save, _ = flags.GetBool("save")

	if schemaFile, _ := flags.GetString("schema-file"); schemaFile != "" {
		schema, err := readJSON(schemaFile)
		if err != nil {
			return err
		}
		req.Schema = schema
	}

	needSpec := req.Schema.IsNull()
	return withSession(cmd, needSpec, func(ctx context.Context, s *app.Session) error {
		if !needSpec {
			// The schema is given inline; a stored spec only supplies its name.
			if _, err := s.ActivateLatest(ctx, specName); err != nil && (specName != "" || !errors.Is(err, app.ErrNoSpec)) {
				return fmt.Errorf("activating spec: %w", err)
			}
		}
		draft, err := pick(s)(ctx, req)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), draft); err != nil {
			return err
		}
		if draft.TestError != "" {
			return fmt.Errorf("test run failed: %s", draft.TestError)
		}
		return nil
	})
}

func addTemplateFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Template name (required with --save)")
	cmd.Flags().String("path", "", "Endpoint path whose response schema is converted")
	cmd.Flags().String("status", "", "Response status code (default 200, then first 2xx)")
	cmd.Flags().String("schema-file", "", "JSON schema file used instead of --path")
	cmd.Flags().String("ddl", "", "Target CREATE TABLE statement")
	cmd.Flags().String("table", "", "Target table recorded by 'table create'")
	cmd.Flags().Bool("save", false, "Store the template when its test run passes")
}

func init() {
	rootCmd.AddCommand(specCmd, endpointsCmd, schemaCmd, callCmd, validateCmd,
		resultsCmd, resultCmd, tableCmd, templateCmd, versionCmd)
	specCmd.AddCommand(specLoadCmd, specListCmd, specShowCmd)
	tableCmd.AddCommand(tableCreateCmd, tableListCmd, tableShowCmd, tableInsertCmd, tableRowsCmd)
	templateCmd.AddCommand(templateGenerateCmd, templateProposeCmd, templateListCmd, templateShowCmd, templateApplyCmd)

	specLoadCmd.Flags().String("name", "", "Spec name (default spec_YYYYmmdd_HHMMSS)")

	schemaCmd.Flags().String("status", "", "Response status code")

	callCmd.Flags().String("prompt", "", "Free-text request; 'name value' pairs fill parameters")
	callCmd.Flags().StringArray("param", nil, "Parameter as name=value (repeatable)")
	callCmd.Flags().StringArray("header", nil, "Header as name=value (repeatable)")
	callCmd.Flags().String("status", "", "Validate against this status code's schema")
	callCmd.Flags().Bool("record", false, "Store the result")

	resultsCmd.Flags().Int("limit", 10, "Maximum results to list")

	tableCreateCmd.Flags().String("reason", "", "Why the table was created")
	tableCreateCmd.Flags().Int64("result-id", 0, "Call result to link the table to")
	tableRowsCmd.Flags().Int("limit", 10, "Maximum rows to print")
	tableRowsCmd.Flags().StringArray("where", nil, "Equality filter as column=value (repeatable)")

	addTemplateFlags(templateGenerateCmd)
	addTemplateFlags(templateProposeCmd)

	templateApplyCmd.Flags().String("table", "", "Insert the output into this table")
}
