package thresholds

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// defaultTier is the spec list used when no skill tier is requested.
const defaultTier = "default"

// LoadFile reads a YAML threshold file and freezes the table for one
// exercise and skill tier. The file groups spec lists under
// exercises.<exercise_id>.<tier>; a missing exercise or tier is fatal
// so a session never runs with partial thresholds.
func LoadFile(path, exerciseID, tier string) (*Table, error) {
	if tier == "" {
		tier = defaultTier
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadTable, path, err)
	}

	key := fmt.Sprintf("exercises.%s.%s", exerciseID, tier)
	if !k.Exists(key) {
		return nil, fmt.Errorf("%w: exercise %q tier %q in %s", ErrUnknownExercise, exerciseID, tier, path)
	}

	var specs []Spec
	if err := k.UnmarshalWithConf(key, &specs, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadTable, key, err)
	}

	opts := []TableOption{}
	if tier != defaultTier {
		opts = append(opts, WithSkillTier(tier))
	}
	return NewTable(exerciseID, specs, opts...)
}
