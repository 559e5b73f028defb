package material

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrUnknownMaterial marks a reference to a material name that is not in the
// loaded set (reaction outputs, burn byproducts, ...).
var ErrUnknownMaterial = errors.New("unknown material")

// Spec is the on-disk shape of one material entry in materials.json.
type Spec struct {
	ID     string `json:"id"`
	UIName string `json:"ui_name,omitempty"`

	Physics PhysicsSpec `json:"physics"`

	Color       [4]uint8  `json:"color"`
	ColorOffset uint8     `json:"color_offset,omitempty"`
	Lighting    *[4]uint8 `json:"lighting,omitempty"`

	Durability float32 `json:"durability,omitempty"`

	Fire      *FireSpec      `json:"fire,omitempty"`
	Contact   *ContactSpec   `json:"contact,omitempty"`
	BurnsInto string         `json:"burns_into,omitempty"`
	Reactions []ReactionSpec `json:"reactions,omitempty"`
}

type PhysicsSpec struct {
	Type    string  `json:"type"`
	Density uint8   `json:"density,omitempty"`
	// Liquid only.
	FlowRate       uint8   `json:"flow_rate,omitempty"`
	DryThreshold   float32 `json:"dry_threshold,omitempty"`
	MaxCompression float32 `json:"max_compression,omitempty"`
	// Gas only. Omitted or -1 means the gas never dissipates.
	Dissipate *int `json:"dissipate,omitempty"`
}

type FireSpec struct {
	Probability    float32 `json:"probability"`
	FireHP         float32 `json:"fire_hp"`
	RequiresOxygen bool    `json:"requires_oxygen,omitempty"`
	TryToIgnite    bool    `json:"try_to_ignite,omitempty"`
}

type ContactSpec struct {
	Effect string  `json:"effect"`
	Amount float32 `json:"amount,omitempty"`
	Radius float32 `json:"radius,omitempty"`
	Force  float32 `json:"force,omitempty"`
}

type ReactionSpec struct {
	Other       string  `json:"other"`
	Probability float32 `json:"probability"`
	OutputSelf  string  `json:"output_self"`
	OutputOther string  `json:"output_other"`
}

type materialsFile struct {
	Materials []Spec `json:"materials"`
}

// Load reads materials.json from configDir, validates it against
// materials.schema.json, and builds the immutable registry. Any malformed or
// dangling entry fails the whole load; there is no partial registry.
func Load(configDir string) (*Registry, error) {
	path := filepath.Join(configDir, "materials.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	schemaPath := filepath.Join(configDir, "materials.schema.json")
	if _, err := os.Stat(schemaPath); err == nil {
		schema, err := jsonschema.Compile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("materials.schema.json: %w", err)
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("materials.json: %w", err)
		}
		if err := schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("materials.json: schema: %w", err)
		}
	}

	var file materialsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("materials.json: %w", err)
	}
	reg, err := Build(file.Materials)
	if err != nil {
		return nil, fmt.Errorf("materials.json: %w", err)
	}
	return reg, nil
}

// Build constructs a registry from decoded specs. The empty material is
// always palette id 0; the remaining names are palette-ordered by sort so ids
// are stable across loads of the same material set.
func Build(specs []Spec) (*Registry, error) {
	byName := make(map[string]Spec, len(specs))
	for _, s := range specs {
		if s.ID == "" {
			return nil, fmt.Errorf("entry with empty id")
		}
		if s.ID == EmptyName {
			return nil, fmt.Errorf("entry %q: reserved id", s.ID)
		}
		if _, dup := byName[s.ID]; dup {
			return nil, fmt.Errorf("entry %q: duplicate id", s.ID)
		}
		byName[s.ID] = s
	}

	names := make([]string, 0, len(byName)+1)
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	names = append([]string{EmptyName}, names...)

	index := make(map[string]ID, len(names))
	for i, name := range names {
		index[name] = ID(i)
	}

	defs := make([]Def, len(names))
	defs[0] = Def{Name: EmptyName, UIName: "Empty", Kind: KindEmpty, Dissipate: -1}

	for i := 1; i < len(names); i++ {
		spec := byName[names[i]]
		def, err := buildDef(spec, index)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", spec.ID, err)
		}
		defs[i] = def
	}

	palJSON, _ := json.Marshal(names)
	sum := sha256.Sum256(palJSON)

	return &Registry{
		defs:          defs,
		index:         index,
		palette:       names,
		paletteDigest: hex.EncodeToString(sum[:]),
	}, nil
}

func buildDef(spec Spec, index map[string]ID) (Def, error) {
	def := Def{
		Name:        spec.ID,
		UIName:      spec.UIName,
		Color:       spec.Color,
		ColorOffset: spec.ColorOffset,
		Lighting:    spec.Lighting,
		Durability:  spec.Durability,
		Dissipate:   -1,
	}
	if def.UIName == "" {
		def.UIName = spec.ID
	}

	switch spec.Physics.Type {
	case "static":
		def.Kind = KindStatic
	case "powder":
		def.Kind = KindPowder
		def.Density = spec.Physics.Density
	case "liquid":
		def.Kind = KindLiquid
		def.Density = spec.Physics.Density
		def.FlowRate = spec.Physics.FlowRate
		def.DryThreshold = spec.Physics.DryThreshold
		def.MaxCompression = spec.Physics.MaxCompression
		if def.FlowRate == 0 {
			def.FlowRate = 1
		}
	case "gas":
		def.Kind = KindGas
		def.Density = spec.Physics.Density
		if spec.Physics.Dissipate != nil {
			def.Dissipate = *spec.Physics.Dissipate
		}
	default:
		return def, fmt.Errorf("physics type %q", spec.Physics.Type)
	}

	if f := spec.Fire; f != nil {
		if f.Probability < 0 || f.Probability > 1 {
			return def, fmt.Errorf("fire probability %v out of range", f.Probability)
		}
		if f.FireHP <= 0 {
			return def, fmt.Errorf("fire_hp must be positive")
		}
		def.Fire = &FireDef{
			Probability:    f.Probability,
			FireHP:         f.FireHP,
			RequiresOxygen: f.RequiresOxygen,
			TryToIgnite:    f.TryToIgnite,
		}
	}

	if c := spec.Contact; c != nil {
		cd := &ContactDef{Amount: c.Amount, Radius: c.Radius, Force: c.Force}
		switch c.Effect {
		case "damage":
			cd.Kind = ContactDamage
		case "heal":
			cd.Kind = ContactHeal
		case "explode":
			cd.Kind = ContactExplode
			if c.Radius <= 0 {
				return def, fmt.Errorf("explode radius must be positive")
			}
		default:
			return def, fmt.Errorf("contact effect %q", c.Effect)
		}
		def.Contact = cd
	}

	if spec.BurnsInto != "" {
		id, ok := index[spec.BurnsInto]
		if !ok {
			return def, fmt.Errorf("burns_into %q: %w", spec.BurnsInto, ErrUnknownMaterial)
		}
		def.BurnsInto = id
	}

	for _, r := range spec.Reactions {
		if r.Probability < 0 || r.Probability > 1 {
			return def, fmt.Errorf("reaction with %q: probability %v out of range", r.Other, r.Probability)
		}
		rr := Reaction{Probability: r.Probability}
		if r.Other == "any" {
			rr.Any = true
		} else {
			id, ok := index[r.Other]
			if !ok {
				return def, fmt.Errorf("reaction with %q: %w", r.Other, ErrUnknownMaterial)
			}
			rr.Other = id
		}
		outSelf, ok := index[r.OutputSelf]
		if !ok {
			return def, fmt.Errorf("reaction output %q: %w", r.OutputSelf, ErrUnknownMaterial)
		}
		outOther, ok := index[r.OutputOther]
		if !ok {
			return def, fmt.Errorf("reaction output %q: %w", r.OutputOther, ErrUnknownMaterial)
		}
		rr.OutSelf = outSelf
		rr.OutOther = outOther
		def.Reactions = append(def.Reactions, rr)
	}

	return def, nil
}
