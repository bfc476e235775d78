package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/tracio/approvalflow/pkg/cmd"
	"github.com/tracio/approvalflow/pkg/log"
	"github.com/tracio/approvalflow/pkg/models"
	"github.com/tracio/approvalflow/pkg/policy"
)

//go:embed rules_schema.json
var rulesSchema []byte

func rulesCommand() *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "Validate and load approval rule configuration",
		Commands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Check a rules file for schema errors, overlaps and coverage gaps",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the JSON rules file",
						Required: true,
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					rules, err := loadRulesFile(command.String("file"))
					if err != nil {
						return err
					}

					warnings, err := policy.ValidateRules(rules)
					for _, warning := range warnings {
						fmt.Fprintln(os.Stdout, "warning:", warning)
					}

					if err != nil {
						return err
					}

					fmt.Fprintf(os.Stdout, "%d rules valid\n", len(rules))

					return nil
				},
			},
			{
				Name:  "import",
				Usage: "Validate a rules file and save it to the configured storage",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the JSON rules file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "database-url",
						Usage:    "Database connection URL for persistence",
						Required: true,
						Sources:  cli.EnvVars("DATABASE_URL"),
					},
					&cli.StringFlag{
						Name:    "log-level",
						Usage:   "Log level (debug, info, warn, error)",
						Value:   "info",
						Sources: cli.EnvVars("LOG_LEVEL"),
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))
					logger := log.WithModule("approvalctl")

					rules, err := loadRulesFile(command.String("file"))
					if err != nil {
						return err
					}

					warnings, err := policy.ValidateRules(rules)
					for _, warning := range warnings {
						logger.WarnContext(ctx, "rule coverage gap", "detail", warning)
					}

					if err != nil {
						return err
					}

					persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
					if err != nil {
						return err
					}
					defer func() {
						err := persistence.Close(ctx)
						if err != nil {
							logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
						}
					}()

					for i := range rules {
						if err := persistence.Rules().Save(ctx, &rules[i]); err != nil {
							return fmt.Errorf("failed to save rule for %s: %w", rules[i].DocumentType, err)
						}
					}

					logger.InfoContext(ctx, "rules imported", "count", len(rules))

					return nil
				},
			},
		},
	}
}

func loadRulesFile(path string) ([]models.ApprovalWorkflowRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(rulesSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate rules file: %w", err)
	}

	if !result.Valid() {
		for _, desc := range result.Errors() {
			fmt.Fprintln(os.Stderr, "schema error:", desc)
		}

		return nil, fmt.Errorf("rules file %s does not match the schema", path)
	}

	var rules []models.ApprovalWorkflowRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	return rules, nil
}
