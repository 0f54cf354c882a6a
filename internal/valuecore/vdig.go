package valuecore

import "github.com/mauludsadiq/fard/internal/digest"

// VDig returns the value digest: CID(Enc(v)).
func VDig(v Value) string {
	return digest.CID(Enc(v))
}
