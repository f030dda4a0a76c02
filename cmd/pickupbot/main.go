package main

import (
	"context"
	"pickupbot/cmd/pickupbot/commands"
	"pickupbot/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "pickupbot")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
