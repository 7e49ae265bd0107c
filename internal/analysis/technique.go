package analysis

// Prompting techniques the selector can recommend.
const (
	TechniqueZeroShot          = "Zero-Shot"
	TechniqueDirectQuestion    = "Direct Question"
	TechniqueFewShot           = "Few-Shot"
	TechniqueRoleBased         = "Role-Based"
	TechniqueChainOfThought    = "Chain of Thought"
	TechniqueReAct             = "ReAct"
	TechniqueMultiStep         = "Multi-Step Reasoning"
	TechniqueTreeOfThoughts    = "Tree of Thoughts"
	techniqueGenericRationale  = "A general-purpose prompting approach for this request."
)

var techniqueRationales = map[string]string{
	TechniqueZeroShot:       "A direct instruction works best for simple, self-contained requests.",
	TechniqueDirectQuestion: "The expected output is already stated, so a precise question gets a precise answer.",
	TechniqueFewShot:        "Examples are present; a few-shot frame lets the model generalize from them.",
	TechniqueRoleBased:      "Context is provided; assigning a role anchors the response in that context.",
	TechniqueChainOfThought: "Stepwise reasoning compensates for missing context and examples.",
	TechniqueReAct:          "Constraints combined with context call for interleaved reasoning and verification.",
	TechniqueMultiStep:      "Constraints with a defined output benefit from explicit intermediate steps.",
	TechniqueTreeOfThoughts: "Open-ended complex requests benefit from exploring alternative solution branches.",
}

// SelectTechnique recommends a prompting technique for a complexity tier and
// set of structural signals, with a fixed rationale string.
func SelectTechnique(complexity Complexity, sig Signals) (technique, rationale string) {
	switch complexity {
	case ComplexitySimple:
		if sig.HasExpectedOutput {
			technique = TechniqueDirectQuestion
		} else {
			technique = TechniqueZeroShot
		}
	case ComplexityModerate:
		switch {
		case sig.HasExamples:
			technique = TechniqueFewShot
		case sig.HasContext:
			technique = TechniqueRoleBased
		default:
			technique = TechniqueChainOfThought
		}
	default:
		switch {
		case sig.HasConstraints && sig.HasContext:
			technique = TechniqueReAct
		case sig.HasConstraints && sig.HasExpectedOutput:
			technique = TechniqueMultiStep
		default:
			technique = TechniqueTreeOfThoughts
		}
	}
	return technique, RationaleFor(technique)
}

// RationaleFor returns the fixed rationale for a technique, falling back to
// a generic line for unknown names.
func RationaleFor(technique string) string {
	if r, ok := techniqueRationales[technique]; ok {
		return r
	}
	return techniqueGenericRationale
}
