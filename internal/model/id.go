package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"sync/atomic"
)

type IDType string

const (
	IDTypeCoroutine IDType = "co"
	IDTypeLaunch    IDType = "ln"
	IDTypeCall      IDType = "call"
	IDTypeWatch     IDType = "watch"
	IDTypeEvent     IDType = "evt"
)

var validIDTypes = map[IDType]bool{
	IDTypeCoroutine: true,
	IDTypeLaunch:    true,
	IDTypeCall:      true,
	IDTypeWatch:     true,
	IDTypeEvent:     true,
}

var idRegex = regexp.MustCompile(`^(co|ln|call|watch|evt)_[0-9]+_[0-9a-f]{8}$`)

var idCounter atomic.Uint64

// GenerateID produces a unique id of the form <type>_<seq>_<hex>.
// The sequence component is monotonic within a process, so ordering ids of
// the same type by that number gives creation order. It is not zero-padded,
// so plain string order of the ids does not.
func GenerateID(idType IDType) (string, error) {
	if !validIDTypes[idType] {
		return "", fmt.Errorf("invalid ID type: %s", idType)
	}

	seq := idCounter.Add(1)
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	hexStr := hex.EncodeToString(randomBytes)

	return fmt.Sprintf("%s_%d_%s", idType, seq, hexStr), nil
}

// MustGenerateID is GenerateID for static id types; it panics only if the
// system random source is unreadable.
func MustGenerateID(idType IDType) string {
	id, err := GenerateID(idType)
	if err != nil {
		panic(err)
	}
	return id
}

func ValidateID(id string) bool {
	return idRegex.MatchString(id)
}

func ParseIDType(id string) (IDType, error) {
	if !ValidateID(id) {
		return "", fmt.Errorf("invalid ID format: %s", id)
	}
	match := idRegex.FindStringSubmatch(id)
	return IDType(match[1]), nil
}
