package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/uadcheck/uadcheck/engine/core"
	"github.com/uadcheck/uadcheck/engine/rules"
	"github.com/uadcheck/uadcheck/engine/schema"
	"github.com/uadcheck/uadcheck/engine/validate"
	"github.com/uadcheck/uadcheck/pkg/config"
	"github.com/uadcheck/uadcheck/pkg/logger"
)

type cfgKey struct{}

func contextWithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, cfgKey{}, cfg)
}

func configFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(cfgKey{}).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// submission is the on-disk request shape: the raw extraction snapshot plus
// the optional cross-source snapshots, caller-resolved sections, and
// acknowledgment metadata.
type submission struct {
	Fields          []core.RawField              `json:"fields"`
	UsedFallback    bool                         `json:"used_fallback"`
	Sections        map[string]any               `json:"sections"`
	Sources         map[string]*core.RawSnapshot `json:"sources"`
	Acknowledgments core.AckSet                  `json:"acknowledgments"`
}

func newValidateCmd() *cobra.Command {
	var extractionPath, registryPath, schemaPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run one extraction snapshot through the validation pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configFromContext(ctx)
			if registryPath == "" {
				registryPath = cfg.RegistryPath
			}
			if schemaPath == "" {
				schemaPath = cfg.SchemaPath
			}
			svc, err := buildService(cfg, registryPath, schemaPath)
			if err != nil {
				return err
			}
			req, err := loadSubmission(extractionPath)
			if err != nil {
				return err
			}
			result, err := svc.Validate(ctx, req)
			if err != nil {
				return err
			}
			encoded, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			if result.Status == core.StatusFail {
				logger.FromContext(ctx).Warn("validation failed",
					"findings", len(result.Findings), "ruleset", result.RulesetVersion)
				return errValidationFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&extractionPath, "extraction", "", "path to the extraction snapshot JSON")
	cmd.Flags().StringVar(&registryPath, "registry", "", "rule registry document (default: built-in)")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "canonical payload schema (default: built-in)")
	_ = cmd.MarkFlagRequired("extraction")
	return cmd
}

// buildService assembles the evaluator, configuration store, and service from
// the given document paths, falling back to the built-in documents.
func buildService(cfg *config.Config, registryPath, schemaPath string) (*validate.Service, error) {
	eval, err := rules.NewEvaluator()
	if err != nil {
		return nil, err
	}
	doc := rules.DefaultDocument()
	schemaDoc := schema.DefaultDocument()
	if registryPath != "" {
		data, err := os.ReadFile(registryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read registry document: %w", err)
		}
		reg, err := parseRegistryDocument(data)
		if err != nil {
			return nil, err
		}
		doc = reg
	}
	if schemaPath != "" {
		data, err := os.ReadFile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema document: %w", err)
		}
		var parsed schema.Schema
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse schema document: %w", err)
		}
		schemaDoc = &parsed
	}
	store, err := rules.NewStore(doc, schemaDoc, eval)
	if err != nil {
		return nil, err
	}
	return validate.New(store, eval,
		validate.WithConfidenceThreshold(cfg.ConfidenceThreshold),
		validate.WithCrossSourceSeverity(core.Severity(cfg.CrossSourceSeverity)),
	), nil
}

// parseRegistryDocument decodes a registry file into a raw document without
// validating it; the store's load path owns validation.
func parseRegistryDocument(data []byte) (*rules.Document, error) {
	var doc rules.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", rules.ErrRegistryLoad, err)
	}
	return &doc, nil
}

func loadSubmission(path string) (*validate.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction snapshot: %w", err)
	}
	var sub submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse extraction snapshot: %w", err)
	}
	return &validate.Request{
		Snapshot: &core.RawSnapshot{
			Fields:       sub.Fields,
			UsedFallback: sub.UsedFallback,
		},
		Sections: sub.Sections,
		Sources:  sub.Sources,
		Acks:     sub.Acknowledgments,
	}, nil
}
