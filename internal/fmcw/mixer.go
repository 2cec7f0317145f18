package fmcw

import "fmt"

// Mix dechirps rx against tx: beat[i] = tx[i] * conj(rx[i]).
func Mix(tx, rx []complex128) ([]complex128, error) {
	if len(tx) != len(rx) {
		return nil, fmt.Errorf("mix: %w: tx has %d samples, rx has %d", ErrLengthMismatch, len(tx), len(rx))
	}
	beat := make([]complex128, len(tx))
	for i := range tx {
		r := rx[i]
		beat[i] = tx[i] * complex(real(r), -imag(r))
	}
	return beat, nil
}
