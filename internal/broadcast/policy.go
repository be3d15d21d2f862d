package broadcast

// PlayerPolicy is the per-player configuration backend selection depends on.
type PlayerPolicy struct {
	Account string
	// UseRelay routes general operations through the delegated relay.
	UseRelay bool
	// UseExtension prefers the external signer application over a held key.
	UseExtension bool
	// RequireElevated marks the account as needing elevated authority for
	// operations on the elevated-op list.
	RequireElevated bool
}

// Selector holds the configured backend variants and picks one per call.
type Selector struct {
	Local     Backend
	Extension Backend
	Relay     Backend
	Server    Backend
}

// General picks the general-purpose backend for the player. Selection is a
// pure function of the policy; the engine never inspects backend types.
func (s *Selector) General(p PlayerPolicy) Backend {
	switch {
	case p.UseRelay && s.Relay != nil:
		return s.Relay
	case p.UseExtension && s.Extension != nil:
		return s.Extension
	default:
		return s.Local
	}
}

// BattleFirst returns the low-latency backend attempted first for
// battle-class operations, or nil when none is configured.
func (s *Selector) BattleFirst() Backend {
	return s.Server
}
