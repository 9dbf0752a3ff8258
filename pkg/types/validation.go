package types

import (
	"net/mail"
	"regexp"
	"strings"
)

// Regexes compiled once at package init.
var (
	nameSegmentRegex = regexp.MustCompile(`^[^/:]+$`)
	documentIDRegex  = regexp.MustCompile(`^([^-]+)-([^-]+)-([\s\S]+)$`)
)

// IsValidEmail reports whether s parses as an RFC 5322 address.
func IsValidEmail(s string) bool {
	if s == "" {
		return false
	}
	_, err := mail.ParseAddress(s)
	return err == nil
}

// IsValidDisplayName bounds a display name to a sane UI length.
func IsValidDisplayName(s string) bool {
	return len(s) >= 1 && len(s) <= 100
}

// RoomName builds the "<namespaceTitle>/<lessonTitle>" identity string.
func RoomName(namespaceTitle, lessonTitle string) (string, error) {
	if !nameSegmentRegex.MatchString(namespaceTitle) || !nameSegmentRegex.MatchString(lessonTitle) {
		return "", ErrInvalidRoomName
	}
	return namespaceTitle + "/" + lessonTitle, nil
}

// ChatName builds the "<roomName>:<localChatName>" identity string.
func ChatName(roomName, localName string) (string, error) {
	if roomName == "" || !nameSegmentRegex.MatchString(localName) {
		return "", ErrInvalidChatName
	}
	return roomName + ":" + localName, nil
}

// DocumentID builds "<namespaceID>-<lessonID>-<componentID>".
func DocumentID(namespaceID, lessonID, componentID string) string {
	return namespaceID + "-" + lessonID + "-" + componentID
}

// ParseDocumentID recovers the (namespaceID, lessonID, componentID) tuple
// coined by DocumentID, following the regex named in the wire-level
// identity contract: ^([^-]+)-([^-]+)-([\s\S]+?)$
func ParseDocumentID(id string) (namespaceID, lessonID, componentID string, err error) {
	m := documentIDRegex.FindStringSubmatch(id)
	if m == nil {
		return "", "", "", ErrInvalidDocumentID
	}
	return m[1], m[2], m[3], nil
}

// SplitRoomName reverses RoomName.
func SplitRoomName(room string) (namespaceTitle, lessonTitle string, ok bool) {
	idx := strings.LastIndex(room, "/")
	if idx < 0 {
		return "", "", false
	}
	return room[:idx], room[idx+1:], true
}

const maxWireContentBytes = 65536

// ValidateWireContentSize bounds a wire payload to 64KB of marshaled JSON.
func ValidateWireContentSize(raw []byte) error {
	if len(raw) > maxWireContentBytes {
		return ErrContentTooLarge
	}
	return nil
}
