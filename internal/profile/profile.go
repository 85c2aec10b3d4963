// Package profile stores per-player data for plugins on top of the engine.
// The plugin name is the namespace and the player UUID the identity.
package profile

import (
	"context"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/asgdb/internal/engine"
)

// GlobalIdentity holds plugin-wide values that belong to no player.
const GlobalIdentity = "__global__"

// Profiles is the player-data view of an engine.
type Profiles struct {
	engine *engine.Engine
}

func New(e *engine.Engine) *Profiles {
	return &Profiles{engine: e}
}

// Save replaces everything plugin stored for player with data.
// Empty data is rejected with OK=false.
func (p *Profiles) Save(ctx context.Context, player uuid.UUID, plugin string, data map[string]any) engine.Result {
	if player == uuid.Nil || plugin == "" || len(data) == 0 {
		return engine.Result{}
	}
	return p.engine.ReplaceAll(ctx, plugin, player.String(), data)
}

// Load returns the player's data for plugin, or false when there is none.
func (p *Profiles) Load(ctx context.Context, player uuid.UUID, plugin string) (map[string]any, bool) {
	if player == uuid.Nil || plugin == "" {
		return nil, false
	}
	data := p.engine.GetAll(ctx, plugin, player.String())
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Has reports whether plugin stored anything for player.
func (p *Profiles) Has(ctx context.Context, player uuid.UUID, plugin string) bool {
	if player == uuid.Nil || plugin == "" {
		return false
	}
	return p.engine.HasData(ctx, plugin, player.String())
}

// Delete removes everything plugin stored for player.
func (p *Profiles) Delete(ctx context.Context, player uuid.UUID, plugin string) engine.Result {
	if player == uuid.Nil || plugin == "" {
		return engine.Result{}
	}
	return p.engine.Delete(ctx, plugin, player.String())
}

// SaveGlobal stores a plugin-wide value. A nil value is rejected.
func (p *Profiles) SaveGlobal(ctx context.Context, plugin, key string, value any) engine.Result {
	if plugin == "" || key == "" || value == nil {
		return engine.Result{}
	}
	return p.engine.Put(ctx, plugin, GlobalIdentity, key, value)
}

// Global returns a plugin-wide value.
func (p *Profiles) Global(ctx context.Context, plugin, key string) (any, bool) {
	if plugin == "" || key == "" {
		return nil, false
	}
	return engine.Get[any](ctx, p.engine, plugin, GlobalIdentity, key)
}

// Plugins lists every plugin with stored data.
func (p *Profiles) Plugins(ctx context.Context) []string {
	return p.engine.ListNamespaces(ctx)
}

// Players lists the players with data for plugin. Identities that are not
// UUIDs, such as GlobalIdentity, are skipped.
func (p *Profiles) Players(ctx context.Context, plugin string) []uuid.UUID {
	players := []uuid.UUID{}
	for _, id := range p.engine.ListIdentities(ctx, plugin) {
		u, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		players = append(players, u)
	}
	return players
}
