package game

import "fmt"

type Op string

const (
	OpConnect Op = "connect"
	OpChat    Op = "chat"
	OpMoveTo  Op = "moveTo"
	OpControl Op = "control"
)

// LoginInfo tells the client bridge which account and server to join.
type LoginInfo struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	AuthType string `json:"auth"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Version  string `json:"version,omitempty"`
}

// Command is a single instruction sent to the client bridge.
type Command struct {
	Op      Op         `json:"op"`
	Text    string     `json:"text,omitempty"`
	Target  *Position  `json:"target,omitempty"`
	Control Control    `json:"control,omitempty"`
	State   *bool      `json:"state,omitempty"`
	Login   *LoginInfo `json:"login,omitempty"`
}

type CommandWriter interface {
	WriteCommand(Command) error
}

type CommandSender struct {
	writer CommandWriter
}

func NewCommandSender(writer CommandWriter) *CommandSender {
	return &CommandSender{
		writer: writer,
	}
}

func (cs *CommandSender) Connect(info LoginInfo) error {
	if err := cs.writer.WriteCommand(Command{Op: OpConnect, Login: &info}); err != nil {
		return fmt.Errorf("failed to send connect command: %w", err)
	}
	return nil
}

func (cs *CommandSender) Chat(text string) error {
	if err := cs.writer.WriteCommand(Command{Op: OpChat, Text: text}); err != nil {
		return fmt.Errorf("failed to send chat command: %w", err)
	}
	return nil
}

func (cs *CommandSender) MoveTo(p Position) error {
	if err := cs.writer.WriteCommand(Command{Op: OpMoveTo, Target: &p}); err != nil {
		return fmt.Errorf("failed to send move command: %w", err)
	}
	return nil
}

func (cs *CommandSender) SetControl(c Control, state bool) error {
	if err := cs.writer.WriteCommand(Command{Op: OpControl, Control: c, State: &state}); err != nil {
		return fmt.Errorf("failed to send %s control command: %w", c, err)
	}
	return nil
}
