// Package commands contains the built-in chat commands. Each module exposes
// a registration function that adds its descriptors to a bot.Registry.
package commands

import "github.com/tbourn/go-chat-bot/internal/bot"

// RegisterAll registers every built-in module.
func RegisterAll(reg *bot.Registry) error {
	for _, register := range []func(*bot.Registry) error{RegisterAdmin, RegisterBasic} {
		if err := register(reg); err != nil {
			return err
		}
	}
	return nil
}

func register(reg *bot.Registry, ds []bot.Descriptor) error {
	for _, d := range ds {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}
