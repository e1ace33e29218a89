package codec

// The document types mirror the file layout of a definition. They carry both
// yaml and json tags so the two formats share one builder.

type workflowDocument struct {
	ID               string               `yaml:"id" json:"id"`
	Name             string               `yaml:"name" json:"name"`
	Description      string               `yaml:"description,omitempty" json:"description,omitempty"`
	Version          int                  `yaml:"version" json:"version"`
	Status           string               `yaml:"status,omitempty" json:"status,omitempty"`
	Nodes            []nodeDocument       `yaml:"nodes" json:"nodes"`
	Connections      []connectionDocument `yaml:"connections" json:"connections"`
	DataRequirements *dataReqDocument     `yaml:"dataRequirements,omitempty" json:"dataRequirements,omitempty"`
	Metadata         map[string]string    `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

type nodeDocument struct {
	ID       string           `yaml:"id" json:"id"`
	Type     string           `yaml:"type" json:"type"`
	Position positionDocument `yaml:"position" json:"position"`
	Data     nodeDataDocument `yaml:"data" json:"data"`
}

type positionDocument struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

type nodeDataDocument struct {
	Label      string          `yaml:"label,omitempty" json:"label,omitempty"`
	Rules      []ruleDocument  `yaml:"rules,omitempty" json:"rules,omitempty"`
	DataSource string          `yaml:"dataSource,omitempty" json:"dataSource,omitempty"`
	Config     map[string]any  `yaml:"config,omitempty" json:"config,omitempty"`
	Action     *actionDocument `yaml:"action,omitempty" json:"action,omitempty"`
}

type connectionDocument struct {
	ID        string `yaml:"id" json:"id"`
	Source    string `yaml:"source" json:"source"`
	Target    string `yaml:"target" json:"target"`
	Label     string `yaml:"label,omitempty" json:"label,omitempty"`
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
}

type dataReqDocument struct {
	Required []string `yaml:"required,omitempty" json:"required,omitempty"`
	Optional []string `yaml:"optional,omitempty" json:"optional,omitempty"`
	External []string `yaml:"external,omitempty" json:"external,omitempty"`
}

type ruleDocument struct {
	ID              string              `yaml:"id" json:"id"`
	Name            string              `yaml:"name" json:"name"`
	Description     string              `yaml:"description,omitempty" json:"description,omitempty"`
	Priority        int                 `yaml:"priority" json:"priority"`
	Enabled         *bool               `yaml:"enabled" json:"enabled"` // nil means enabled
	LogicalOperator string              `yaml:"logicalOperator,omitempty" json:"logicalOperator,omitempty"`
	Conditions      []conditionDocument `yaml:"conditions" json:"conditions"`
	Actions         []actionDocument    `yaml:"actions" json:"actions"`
	Metadata        *ruleMetaDocument   `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

type conditionDocument struct {
	ID          string `yaml:"id" json:"id"`
	Field       string `yaml:"field" json:"field"`
	Operator    string `yaml:"operator" json:"operator"`
	Value       any    `yaml:"value,omitempty" json:"value,omitempty"`
	DataType    string `yaml:"dataType,omitempty" json:"dataType,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

type actionDocument struct {
	Type        string `yaml:"type" json:"type"`
	Value       any    `yaml:"value,omitempty" json:"value,omitempty"`
	OutputField string `yaml:"outputField,omitempty" json:"outputField,omitempty"`
	Message     string `yaml:"message,omitempty" json:"message,omitempty"`
}

type ruleMetaDocument struct {
	CreatedAt string `yaml:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt string `yaml:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	Version   int    `yaml:"version,omitempty" json:"version,omitempty"`
}

// ruleSetDocument is the standalone rules file layout. A bare list of rules
// is accepted too.
type ruleSetDocument struct {
	Rules []ruleDocument `yaml:"rules" json:"rules"`
}
