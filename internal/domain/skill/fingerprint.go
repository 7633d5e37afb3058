package skill

import (
	"encoding/binary"
	"encoding/hex"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint возвращает хеш содержимого навыков, влияющего на оценку
// достижений: ID навыков, моменты и длительности записей журнала.
// Порядок навыков и записей не влияет на результат.
// Название, цели и категория не учитываются.
func Fingerprint(skills []Skill) string {
	// blake2b.New256 без ключа не возвращает ошибку.
	h, _ := blake2b.New256(nil)

	ordered := make([]Skill, len(skills))
	copy(ordered, skills)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var buf [8]byte
	writeInt := func(v int64) {
		binary.BigEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	writeString := func(s string) {
		writeInt(int64(len(s)))
		h.Write([]byte(s))
	}

	writeInt(int64(len(ordered)))
	for _, s := range ordered {
		writeString(s.ID)

		entries := make([]PracticeEntry, len(s.PracticeLog))
		copy(entries, s.PracticeLog)
		sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

		writeInt(int64(len(entries)))
		for _, e := range entries {
			writeString(e.ID)
			writeInt(e.Date.UnixNano())
			writeInt(int64(e.Duration))
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
