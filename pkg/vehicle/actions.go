package vehicle

import "context"

// The wrappers below dispatch a command and wait for its acknowledgement. Use
// [Vehicle.SendCommand] directly for fire-and-forget behavior.

// Lock locks the doors.
func (v *Vehicle) Lock(ctx context.Context) (CommandStatus, error) {
	return v.SendCommand(ctx, CommandLock, true)
}

// Unlock unlocks the doors.
func (v *Vehicle) Unlock(ctx context.Context) (CommandStatus, error) {
	return v.SendCommand(ctx, CommandUnlock, true)
}

// EngineStart starts the engine remotely.
func (v *Vehicle) EngineStart(ctx context.Context) (CommandStatus, error) {
	return v.SendCommand(ctx, CommandEngineStart, true)
}

// EngineStop shuts the engine off.
func (v *Vehicle) EngineStop(ctx context.Context) (CommandStatus, error) {
	return v.SendCommand(ctx, CommandEngineStop, true)
}

// HornLights sounds the horn and flashes the lights.
func (v *Vehicle) HornLights(ctx context.Context) (CommandStatus, error) {
	return v.SendCommand(ctx, CommandHornLights, true)
}
