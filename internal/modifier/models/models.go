// Package models attaches custom item models to base items through custom
// model data.
package models

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/mangoplex/multipacks/internal/modifier"
	"github.com/mangoplex/multipacks/internal/packs"
)

const (
	ID  = "models"
	Dir = "custom_items"
)

// ItemModelsVersion is the first game version reading item model definitions
// from items/ instead of overrides in models/item/.
var ItemModelsVersion = packs.MustParseVersion("1.21.4")

// Model is a custom item. CustomModelData is numbered at finalize unless the
// definition sets it.
type Model struct {
	Base            packs.ResourcePath // the item, e.g. minecraft:stick
	Model           packs.ResourcePath
	CustomModelData int
	Pack            packs.Identifier
}

type definition struct {
	Base            string `json:"base"`
	Model           string `json:"model"`
	CustomModelData int    `json:"custom_model_data,omitempty"`
}

type Modifier struct {
	Models map[packs.ResourcePath]*Model
}

func Factory() modifier.Factory {
	return modifier.Factory{ID: ID, New: func() modifier.Modifier { return New() }}
}

func New() *Modifier {
	return &Modifier{Models: make(map[packs.ResourcePath]*Model)}
}

func (*Modifier) ID() string { return ID }

func (*Modifier) Claims(p packs.ResourcePath) bool {
	return modifier.IsDefinition(p, Dir)
}

func (m *Modifier) Visit(pack *packs.Pack, assets modifier.Assets) error {
	seen := make(map[packs.ResourcePath]packs.ResourcePath, len(assets))
	for _, p := range assets.Paths() {
		key := p.WithPath(p.Name(Dir))
		if other, ok := seen[key]; ok {
			return fmt.Errorf("custom item %s is defined by both %s and %s", key, other, p)
		}
		seen[key] = p

		var def definition
		if err := modifier.Decode(p, assets[p], &def); err != nil {
			return err
		}
		if def.Base == "" || def.Model == "" {
			return fmt.Errorf("%s: base and model are required", p)
		}
		if def.CustomModelData < 0 {
			return fmt.Errorf("%s: custom_model_data must be positive", p)
		}
		base, err := packs.ParseResourcePath(def.Base)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		model, err := packs.ParseResourcePathIn(def.Model, p.Namespace)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}

		m.Models[key] = &Model{Base: base, Model: model, CustomModelData: def.CustomModelData, Pack: pack.ID}
	}
	return nil
}

// Finalize numbers the models of every base item and writes the item model
// in the layout of the target version.
func (m *Modifier) Finalize(env *modifier.Env) error {
	groups := make(map[packs.ResourcePath][]*Model)
	for _, k := range packs.SortedPaths(m.Models) {
		model := m.Models[k]
		groups[model.Base] = append(groups[model.Base], model)
	}

	for _, base := range packs.SortedPaths(groups) {
		models := groups[base]
		if err := number(base, models); err != nil {
			return err
		}
		slices.SortFunc(models, func(a, b *Model) int { return a.CustomModelData - b.CustomModelData })

		var err error
		if env.Target.Less(ItemModelsVersion) {
			err = emitOverrides(env, base, models)
		} else {
			err = emitItemModel(env, base, models)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func number(base packs.ResourcePath, models []*Model) error {
	used := make(map[int]packs.ResourcePath, len(models))
	for _, m := range models {
		if m.CustomModelData == 0 {
			continue
		}
		if other, ok := used[m.CustomModelData]; ok {
			return fmt.Errorf("models %s and %s both use custom model data %d on %s", other, m.Model, m.CustomModelData, base)
		}
		used[m.CustomModelData] = m.Model
	}

	next := 1
	for _, m := range models {
		if m.CustomModelData != 0 {
			continue
		}
		for {
			if _, ok := used[next]; !ok {
				break
			}
			next++
		}
		m.CustomModelData = next
		used[next] = m.Model
	}
	return nil
}

// defaultModel is the vanilla model of an item.
func defaultModel(base packs.ResourcePath) packs.ResourcePath {
	return base.WithPath("item/" + base.Path)
}

func emitOverrides(env *modifier.Env, base packs.ResourcePath, models []*Model) error {
	p := base.WithPath("models/item/" + base.Path + ".json")

	doc := map[string]any{
		"parent":   "minecraft:item/generated",
		"textures": map[string]any{"layer0": defaultModel(base).String()},
	}
	if bs, ok := env.Asset(p); ok {
		doc = map[string]any{}
		if err := json.Unmarshal(bs, &doc); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	overrides, _ := doc["overrides"].([]any)
	for _, m := range models {
		overrides = append(overrides, map[string]any{
			"predicate": map[string]any{"custom_model_data": m.CustomModelData},
			"model":     m.Model.String(),
		})
	}
	doc["overrides"] = overrides

	return emitJSON(env, p, doc)
}

func emitItemModel(env *modifier.Env, base packs.ResourcePath, models []*Model) error {
	p := base.WithPath("items/" + base.Path + ".json")

	var fallback any = map[string]any{"type": "minecraft:model", "model": defaultModel(base).String()}
	doc := map[string]any{}
	if bs, ok := env.Asset(p); ok {
		if err := json.Unmarshal(bs, &doc); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if existing, ok := doc["model"]; ok {
			fallback = existing
		}
	}

	entries := make([]any, 0, len(models))
	for _, m := range models {
		entries = append(entries, map[string]any{
			"threshold": m.CustomModelData,
			"model":     map[string]any{"type": "minecraft:model", "model": m.Model.String()},
		})
	}
	doc["model"] = map[string]any{
		"type":     "minecraft:range_dispatch",
		"property": "minecraft:custom_model_data",
		"fallback": fallback,
		"entries":  entries,
	}

	return emitJSON(env, p, doc)
}

func emitJSON(env *modifier.Env, p packs.ResourcePath, doc any) error {
	bs, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return env.Emit(p, bs)
}
