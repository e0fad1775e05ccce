package objectstore

import (
	"strconv"

	"github.com/google/uuid"
)

const (
	asciiJ = 'j'
	asciiZ = 'z'
)

// EncodeN builds an object key suffix in the "<sorting prefix>-<n>" form.
// The prefix inverts both the digit count and the digits themselves, so
// keys with smaller n sort last:
//
//	EncodeN(0) == "zj-0"
//	EncodeN(123) == "xihg-123"
//
// Listing with start-after EncodeN(threshold+1) then yields exactly the
// keys with n <= threshold, which is how pruning finds old bodies.
func EncodeN(n int64) string {
	s := strconv.FormatInt(n, 10)
	b := make([]byte, 0, 2*len(s)+2)
	b = append(b, byte(asciiZ-len(s)+1))
	for i := 0; i < len(s); i++ {
		b = append(b, asciiJ-(s[i]-'0'))
	}
	b = append(b, '-')
	b = append(b, s...)
	return string(b)
}

func objectKey(code uuid.UUID, n int64) string {
	return code.String() + "/" + EncodeN(n)
}
