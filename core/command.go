package core

import (
	"errors"
	"sync"

	"vbatrtc/protocol"
)

// CommandHandler handles one command; it decodes its own arguments from
// data.
type CommandHandler func(data *[]byte) error

// Command is one entry of the message table.
type Command struct {
	ID      protocol.MessageID
	Name    string
	Format  string
	Handler CommandHandler // nil for responses
}

var ErrUnknownCommand = errors.New("unknown command")

// CommandRegistry maps message IDs to handlers. IDs come from the protocol
// message table, so a registry only binds handlers to existing entries.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []Command
}

// NewCommandRegistry creates a registry holding the whole message table
// with no handlers bound.
func NewCommandRegistry() *CommandRegistry {
	msgs := protocol.Messages()
	r := &CommandRegistry{commands: make([]Command, len(msgs))}
	for i, m := range msgs {
		r.commands[i] = Command{
			ID:     protocol.MessageID(i),
			Name:   m.Name,
			Format: m.Format,
		}
	}
	return r
}

// Register binds handler to the command called name and returns its ID.
// Responses cannot carry a handler.
func (r *CommandRegistry) Register(name string, handler CommandHandler) (protocol.MessageID, error) {
	id, ok := protocol.LookupName(name)
	if !ok {
		return 0, errors.New("unknown command: " + name)
	}
	if f, _ := protocol.Lookup(id); f.Response {
		return 0, errors.New("not a command: " + name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[id].Handler = handler
	return id, nil
}

// GetCommand retrieves a command by ID.
func (r *CommandRegistry) GetCommand(id protocol.MessageID) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return Command{}, false
	}
	return r.commands[id], true
}

// Count returns how many commands have a handler.
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.commands {
		if c.Handler != nil {
			n++
		}
	}
	return n
}

// Dispatch runs the handler for cmdID. It matches protocol.CommandHandler.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(protocol.MessageID(cmdID))
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// CommandsAndResponses splits the table into "name format" strings keyed
// to their IDs: bound commands in the first map, responses in the second.
func (r *CommandRegistry) CommandsAndResponses() (map[string]int, map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make(map[string]int)
	responses := make(map[string]int)
	for _, cmd := range r.commands {
		s := cmd.Name
		if cmd.Format != "" {
			s += " " + cmd.Format
		}
		if f, _ := protocol.Lookup(cmd.ID); f.Response {
			responses[s] = int(cmd.ID)
		} else if cmd.Handler != nil {
			commands[s] = int(cmd.ID)
		}
	}
	return commands, responses
}
