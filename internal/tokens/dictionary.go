package tokens

// Dictionary holds the byte strings dictionary mutations insert as Constant tokens.
type Dictionary [][]byte

func (d Dictionary) Len() int {
	return len(d)
}
