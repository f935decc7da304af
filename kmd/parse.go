package kmd

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Section markers.
const (
	TagKMD         = "KMD"
	TagSymbolTable = "SYMBOL_TABLE"
)

// ParseError describes the first line that could not be parsed.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("kmd line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Parse tokenizes a complete .kmd listing.
func Parse(text string) ([]Token, error) {
	var (
		tokens    []Token
		inSymbols bool
		lineNo    int
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(scanner.Text(), " \t\r")
		trimmed := strings.TrimSpace(raw)

		switch {
		case trimmed == "":
			continue
		case trimmed == TagKMD:
			inSymbols = false
			tokens = append(tokens, Tag{Name: TagKMD})
		case trimmed == TagSymbolTable:
			inSymbols = true
			tokens = append(tokens, Tag{Name: TagSymbolTable})
		case isListingLine(trimmed):
			line, reason := parseLine(trimmed)
			if reason != "" {
				return nil, &ParseError{Line: lineNo, Text: raw, Reason: reason}
			}
			tokens = append(tokens, line)
		case inSymbols:
			label, reason := parseLabel(trimmed)
			if reason != "" {
				return nil, &ParseError{Line: lineNo, Text: raw, Reason: reason}
			}
			tokens = append(tokens, label)
		default:
			return nil, &ParseError{Line: lineNo, Text: raw, Reason: "unexpected line"}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read kmd: %w", err)
	}

	return tokens, nil
}

// isListingLine reports whether s has an address colon before any comment.
func isListingLine(s string) bool {
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return false
	}
	semi := strings.IndexByte(s, ';')
	return semi < 0 || colon < semi
}

func parseLine(s string) (Line, string) {
	var line Line

	colon := strings.IndexByte(s, ':')
	addrPart := strings.TrimSpace(s[:colon])
	rest := s[colon+1:]

	if semi := strings.IndexByte(rest, ';'); semi >= 0 {
		line.Comment = strings.TrimPrefix(rest[semi+1:], " ")
		rest = rest[:semi]
	}

	if addrPart != "" {
		addr, err := strconv.ParseUint(addrPart, 16, 32)
		if err != nil {
			return Line{}, "bad address"
		}
		line.Address = uint32(addr)
		line.HasAddress = true
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return line, ""
	}

	if len(fields) == 1 && len(fields[0]) == 8 {
		value, err := strconv.ParseUint(fields[0], 16, 32)
		if err != nil {
			return Line{}, "bad instruction"
		}
		line.Word = NewInstruction(uint32(value))
		return line, ""
	}

	var data Data
	for _, f := range fields {
		width := len(f) / 2
		if len(f)%2 != 0 || (width != 1 && width != 2 && width != 4) {
			return Line{}, "bad data group"
		}
		value, err := strconv.ParseUint(f, 16, width*8)
		if err != nil {
			return Line{}, "bad data group"
		}
		var group [4]byte
		binary.LittleEndian.PutUint32(group[:], uint32(value))
		data = append(data, group[:width]...)
	}
	line.Word = data

	return line, ""
}

func parseLabel(s string) (Label, string) {
	fields := strings.Fields(s)
	if len(fields) < 2 || len(fields) > 4 {
		return Label{}, "bad symbol"
	}

	addr, err := strconv.ParseUint(fields[1], 16, 32)
	if err != nil {
		return Label{}, "bad symbol address"
	}

	label := Label{Name: fields[0], Address: uint32(addr)}

	if len(fields) > 2 {
		switch strings.ToLower(fields[2]) {
		case "global":
			label.Exported = true
		case "local":
		default:
			return Label{}, "bad symbol scope"
		}
	}

	if len(fields) > 3 {
		switch strings.ToLower(fields[3]) {
		case "thumb":
			label.Thumb = true
		case "arm":
		default:
			return Label{}, "bad symbol mode"
		}
	}

	return label, ""
}
