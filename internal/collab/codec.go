package collab

import (
	"strconv"
	"strings"

	"switchboard/internal/ot"
)

// encodeStep/decodeStep give CompressedStep.Payload a stable wire form so
// a rehydrated Instance can decode compressed persisted steps back into
// Steps, as get_instance's rehydration path requires. One op per line,
// "R <n>" / "D <n>" / "I <quoted text>"; insert text is strconv-quoted so
// a newline inside it cannot split the op across lines.
func encodeStep(s ot.Step) []byte {
	var sb strings.Builder
	for _, op := range s.Ops {
		switch op.Kind {
		case ot.OpRetain:
			sb.WriteString("R ")
			sb.WriteString(strconv.Itoa(op.N))
		case ot.OpDelete:
			sb.WriteString("D ")
			sb.WriteString(strconv.Itoa(op.N))
		case ot.OpInsert:
			sb.WriteString("I ")
			sb.WriteString(strconv.Quote(op.Text))
		}
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

func decodeStep(clientID string, payload []byte) ot.Step {
	lines := strings.Split(strings.TrimRight(string(payload), "\n"), "\n")
	ops := make([]ot.Op, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		kind := line[0]
		rest := ""
		if len(line) > 2 {
			rest = line[2:]
		}
		switch kind {
		case 'R':
			n, _ := strconv.Atoi(rest)
			ops = append(ops, ot.Retain(n))
		case 'D':
			n, _ := strconv.Atoi(rest)
			ops = append(ops, ot.Delete(n))
		case 'I':
			text, err := strconv.Unquote(rest)
			if err != nil {
				text = rest
			}
			ops = append(ops, ot.Insert(text))
		}
	}
	return ot.Step{ClientID: clientID, Ops: ops}
}
