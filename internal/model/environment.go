package model

import (
	"fmt"
	"strings"
)

// Environment selects the remote endpoint (tpAmb)
type Environment int

const (
	Production Environment = 1
	Restricted Environment = 2
)

// String returns the configuration name of the environment
func (e Environment) String() string {
	switch e {
	case Production:
		return "producao"
	case Restricted:
		return "producaorestrita"
	default:
		return fmt.Sprintf("ambiente(%d)", int(e))
	}
}

// Code returns the tpAmb value
func (e Environment) Code() int {
	return int(e)
}

// ParseEnvironment accepts the Portuguese configuration names as well as
// "production" and "restricted".
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "producao", "produção", "production", "prod", "1":
		return Production, nil
	case "producaorestrita", "produção restrita", "restricted", "homologacao", "2":
		return Restricted, nil
	}
	return 0, fmt.Errorf("unknown environment %q", s)
}
