package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/compile"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/vocab"
)

const (
	// RDFType is the rdf:type predicate.
	RDFType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	// LungCancerNamespace is the base IRI of the lung cancer graph.
	LungCancerNamespace = "http://example.org/lungCancer/entity/"
)

var validate = newValidator()

// newValidator registers "token": a non-empty string without whitespace, as
// rule tokens are split on whitespace.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("token", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && len(strings.Fields(s)) == 1 && strings.TrimSpace(s) == s
	})
	return v
}

// Config describes the graph vocabulary and evaluation settings
type Config struct {
	Namespace        string            `yaml:"namespace" validate:"required,url"`
	EntityType       string            `yaml:"entity_type" validate:"required"`
	TypePredicate    string            `yaml:"type_predicate" validate:"required"`
	StatusPredicate  string            `yaml:"status_predicate" validate:"required"`
	SubjectVariable  string            `yaml:"subject_variable" validate:"required,startswith=?,min=2"`
	MaxFreshAttempts int               `yaml:"max_fresh_attempts" validate:"gte=1,lte=1024"`
	CacheSize        int               `yaml:"cache_size" validate:"gte=0"`
	RuleTimeout      time.Duration     `yaml:"rule_timeout" validate:"gte=0"`
	Identifiers      []string          `yaml:"identifiers" validate:"dive,required,token"`
	Aliases          map[string]string `yaml:"aliases" validate:"dive,keys,required,token,endkeys,required"`
	Literals         []string          `yaml:"literals" validate:"dive,required,token"`
}

// Default returns the configuration for the lung cancer graph: patients typed
// with rdf:type and labelled through hasValidationStatus.
func Default() *Config {
	return &Config{
		Namespace:        LungCancerNamespace,
		EntityType:       "Patient",
		TypePredicate:    RDFType,
		StatusPredicate:  "hasValidationStatus",
		SubjectVariable:  compile.DefaultSubjectVariable,
		MaxFreshAttempts: compile.DefaultMaxFreshAttempts,
		Identifiers: []string{
			"hasStage",
			"treatmentType",
			"patientDrug",
			"hasRelapse_Progression",
			"hasGender",
			"hasSmokingHabit",
			"IV",
			"Immunotherapy",
			"Intravenous_Chemotherapy",
			"Progression",
			"Pemetrexed",
			"Paclitaxel",
			"Carboplatin",
			"Cisplatin",
			"Male",
			"FormerSmoker",
			"Radiotherapy_To_Lung",
			"Nivolumab",
		},
	}
}

// Load reads a YAML file over Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints and reports them as ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", internalerr.ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return nil
}

// Expand resolves a name against the namespace. Absolute IRIs pass through.
func (c *Config) Expand(name string) string {
	if strings.Contains(name, "://") || strings.HasPrefix(name, "urn:") {
		return name
	}
	return c.Namespace + name
}

// EntityTypeIRI returns the expanded entity type.
func (c *Config) EntityTypeIRI() string { return c.Expand(c.EntityType) }

// TypePredicateIRI returns the expanded type predicate.
func (c *Config) TypePredicateIRI() string { return c.Expand(c.TypePredicate) }

// StatusPredicateIRI returns the expanded validation status predicate.
func (c *Config) StatusPredicateIRI() string { return c.Expand(c.StatusPredicate) }

// Vocabulary builds the token table.
func (c *Config) Vocabulary() *vocab.Vocabulary {
	v := vocab.New(c.Namespace)
	for _, tok := range c.Identifiers {
		v.AddIdentifier(tok)
	}
	for tok, iri := range c.Aliases {
		v.AddAlias(tok, c.Expand(iri))
	}
	for _, tok := range c.Literals {
		v.AddLiteral(tok)
	}
	return v
}

// Compiler builds a rule compiler from the configuration.
func (c *Config) Compiler() (*compile.Compiler, error) {
	return compile.New(compile.Config{
		Vocabulary:       c.Vocabulary(),
		EntityType:       c.EntityTypeIRI(),
		TypePredicate:    c.TypePredicateIRI(),
		SubjectVariable:  c.SubjectVariable,
		MaxFreshAttempts: c.MaxFreshAttempts,
	})
}
