package main

import (
	"context"

	"datasmoothie-client/cmd/datasmoothie/commands"
	"datasmoothie-client/lib/util/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext(context.Background())
	defer cancel()
	commands.ExecuteContext(ctx)
}
