package model

// Protocol selects the wire protocol a layer's model is invoked with.
type Protocol string

const (
	// ProtocolStructured sends a strict JSON schema and supports reasoning.
	ProtocolStructured Protocol = "structured"
	// ProtocolChat sends a system+user message pair and asks for a JSON object.
	ProtocolChat Protocol = "chat"
	// ProtocolMessages uses the Anthropic Messages API.
	ProtocolMessages Protocol = "messages"
)

// LayerCount is the fixed number of analysis layers in a run.
const LayerCount = 4

// Layer identifiers in execution order.
const (
	LayerFoundation     = 1
	LayerStrategic      = 2
	LayerImplementation = 3
	LayerEvolution      = 4
)

// ComplexityRange is the inclusive complexity band a layer targets.
type ComplexityRange struct {
	Lo int `yaml:"lo" json:"lo" mapstructure:"lo" validate:"gte=0,lte=100"`
	Hi int `yaml:"hi" json:"hi" mapstructure:"hi" validate:"gte=0,lte=100,gtefield=Lo"`
}

// LayerSpec is the immutable configuration of one analysis layer.
type LayerSpec struct {
	ID              int             `yaml:"id" json:"id" validate:"min=1,max=4"`
	Name            string          `yaml:"name" json:"name" validate:"required"`
	Description     string          `yaml:"description" json:"description"`
	Model           string          `yaml:"model" json:"model" validate:"required"`
	Protocol        Protocol        `yaml:"protocol" json:"protocol" validate:"oneof=structured chat messages"`
	ComplexityRange ComplexityRange `yaml:"complexity_range" json:"complexity_range"`
	Prompts         []string        `yaml:"prompts" json:"prompts" validate:"min=1,dive,required"`
	UsesReasoning   bool            `yaml:"uses_reasoning" json:"uses_reasoning"`
}

// LayerSet is the ordered set of layers a run executes.
type LayerSet [LayerCount]LayerSpec

// DefaultLayers returns the built-in Foundation → Strategic → Implementation
// → Evolution layer set.
func DefaultLayers() LayerSet {
	return LayerSet{
		{
			ID:              LayerFoundation,
			Name:            "Foundation",
			Description:     "Establish what the document is, who it is for, and the core facts it asserts.",
			Model:           "gpt-4.1-mini",
			Protocol:        ProtocolChat,
			ComplexityRange: ComplexityRange{Lo: 0, Hi: 30},
			Prompts: []string{
				"Summarize the document's purpose, audience and scope.",
				"List the most important factual claims as key findings.",
				"Extract the domain concepts, named systems and technologies mentioned.",
				"Rate how ready the described initiative is to proceed on a 1-10 scale.",
			},
		},
		{
			ID:              LayerStrategic,
			Name:            "Strategic",
			Description:     "Assess strategic fit, risks and opportunities given the foundation analysis.",
			Model:           "claude-sonnet-4-5-20250929",
			Protocol:        ProtocolMessages,
			ComplexityRange: ComplexityRange{Lo: 20, Hi: 60},
			Prompts: []string{
				"Evaluate strategic alignment and competitive positioning.",
				"Identify the principal risks with severity and mitigation.",
				"Identify opportunities with their impact and required effort.",
			},
		},
		{
			ID:              LayerImplementation,
			Name:            "Implementation",
			Description:     "Turn the strategy into an executable plan and judge its feasibility.",
			Model:           "gpt-5",
			Protocol:        ProtocolStructured,
			ComplexityRange: ComplexityRange{Lo: 40, Hi: 85},
			Prompts: []string{
				"Outline the implementation phases, dependencies and resourcing implied by the document.",
				"Flag execution risks that the strategic layer did not cover.",
				"Give at most three concrete recommendations for the next quarter.",
			},
			UsesReasoning: true,
		},
		{
			ID:              LayerEvolution,
			Name:            "Evolution",
			Description:     "Project how the initiative should evolve and what would make it transformational.",
			Model:           "o3",
			Protocol:        ProtocolStructured,
			ComplexityRange: ComplexityRange{Lo: 60, Hi: 100},
			Prompts: []string{
				"Describe how the initiative should evolve over the next two to three years.",
				"Identify transformational opportunities and the signals that would justify them.",
				"Give a final readiness score reflecting all previous layers.",
			},
			UsesReasoning: true,
		},
	}
}

// Protocols returns the distinct protocols used by the set.
func (s LayerSet) Protocols() []Protocol {
	seen := make(map[Protocol]bool)
	var out []Protocol
	for _, l := range s {
		if !seen[l.Protocol] {
			seen[l.Protocol] = true
			out = append(out, l.Protocol)
		}
	}
	return out
}
