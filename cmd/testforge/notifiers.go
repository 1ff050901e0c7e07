package main

// Each blank import activates a self-registering notifier adapter.
// Add new notifiers here as they are implemented.
import (
	_ "github.com/Strob0t/TestForge/internal/adapter/discord"
	_ "github.com/Strob0t/TestForge/internal/adapter/email"
	_ "github.com/Strob0t/TestForge/internal/adapter/slack"
)
