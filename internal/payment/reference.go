package payment

import (
	"fmt"
	"strconv"
	"strings"

	"forexhub/internal/plan"
)

// AccountReferenceLen is the longest AccountReference Daraja accepts.
const AccountReferenceLen = 12

// NewAccountReference builds the tag shown on the customer's M-Pesa
// statement. Layout, all upper-case base36:
//
//	<plan initial><len(subject)><subject><low digits of seq>
//
// Quarterly for subject 12345 at seq 1767225600000 is "Q39IXJUOHS00".
// The subject and plan can be read back with ParseAccountReference; seq must
// be unique per initiation of a subject.
func NewAccountReference(kind plan.Kind, subjectID, seq int64) (string, error) {
	if !kind.Valid() || subjectID <= 0 || seq < 0 {
		return "", fmt.Errorf("%w: cannot build account reference", ErrInvalidRequest)
	}
	subject := strconv.FormatInt(subjectID, 36)
	room := AccountReferenceLen - 2 - len(subject)
	if room < 2 {
		return "", fmt.Errorf("%w: subject %d too large for account reference", ErrInvalidRequest, subjectID)
	}

	tail := strconv.FormatInt(seq, 36)
	if len(tail) > room {
		tail = tail[len(tail)-room:]
	} else {
		tail = strings.Repeat("0", room-len(tail)) + tail
	}

	ref := string(kindInitial(kind)) + strconv.FormatInt(int64(len(subject)), 36) + subject + tail
	return strings.ToUpper(ref), nil
}

// ParseAccountReference recovers the plan kind and subject from a tag built
// by NewAccountReference.
func ParseAccountReference(ref string) (plan.Kind, int64, bool) {
	if len(ref) != AccountReferenceLen {
		return "", 0, false
	}
	ref = strings.ToLower(ref)

	var kind plan.Kind
	for _, k := range plan.Kinds {
		if kindInitial(k) == ref[0] {
			kind = k
		}
	}
	if kind == "" {
		return "", 0, false
	}

	n, err := strconv.ParseInt(ref[1:2], 36, 64)
	if err != nil || n < 1 || 2+int(n) > AccountReferenceLen-2 {
		return "", 0, false
	}
	subject, err := strconv.ParseInt(ref[2:2+n], 36, 64)
	if err != nil || subject <= 0 {
		return "", 0, false
	}
	return kind, subject, true
}

func kindInitial(k plan.Kind) byte {
	return string(k)[0]
}
