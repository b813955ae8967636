package links

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// MemberIndex answers whether an anime has enough members to be worth
// collecting. A nil index treats every anime as relevant.
type MemberIndex struct {
	members map[int]int64
	cut     int
}

// LoadMemberIndex reads a JSON object mapping MAL ids to member counts. An
// empty path returns a nil index.
func LoadMemberIndex(path string, cut int) (*MemberIndex, error) {
	if path == "" {
		return nil, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read member map %s", path)
	}

	raw := map[string]json.Number{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal member map %s", path)
	}

	idx := &MemberIndex{members: make(map[int]int64, len(raw)), cut: cut}
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid mal id %q in member map", k)
		}
		n, err := v.Int64()
		if err != nil {
			return nil, errors.Wrapf(err, "invalid member count for mal id %d", id)
		}
		idx.members[id] = n
	}

	return idx, nil
}

// Relevant reports whether malID has more members than the cut. Unknown ids
// have zero members.
func (m *MemberIndex) Relevant(malID int) bool {
	if m == nil {
		return true
	}
	return m.members[malID] > int64(m.cut)
}

// Len returns the number of ids in the index.
func (m *MemberIndex) Len() int {
	if m == nil {
		return 0
	}
	return len(m.members)
}
