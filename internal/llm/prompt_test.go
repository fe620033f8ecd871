package llm

import (
	"strings"
	"testing"
)

func TestPromptLibrary(t *testing.T) {
	lib := NewPromptLibrary()
	stages := []Stage{StageCaptureHandwritten, StageCaptureDigital, StageValidate, StageRoute, StageOptimize, StageException}
	for _, s := range stages {
		t.Run(string(s), func(t *testing.T) {
			p := lib.Get(s)
			if p.Stage != s || p.Version != PromptVersion {
				t.Errorf("prompt = %+v", p)
			}
			if !strings.Contains(p.Instruction, "JSON Schema:") {
				t.Error("instruction should embed the reply schema")
			}
			if !strings.Contains(p.Instruction, "use null") {
				t.Error("instruction should state the null rule")
			}
			for _, name := range p.Fields.Names() {
				if !strings.Contains(p.Instruction, `"`+name+`"`) {
					t.Errorf("schema in instruction is missing field %s", name)
				}
			}
		})
	}

	hw, dg := lib.Get(StageCaptureHandwritten), lib.Get(StageCaptureDigital)
	if hw.Instruction == dg.Instruction {
		t.Error("capture prompts should differ in wording")
	}
	if strings.Join(hw.Fields.Names(), ",") != strings.Join(dg.Fields.Names(), ",") {
		t.Error("capture prompts must target the same reply shape")
	}
}

func TestPromptLibrary_UnknownStagePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown stage")
		}
	}()
	NewPromptLibrary().Get(Stage("nope"))
}
