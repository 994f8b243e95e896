package ultralink

// SPDX-FileCopyrightText: 2002 Phil Karn, KA9Q
// SPDX-FileCopyrightText: 2007 Jim McGuire KB3MPL
// SPDX-FileCopyrightText: The Samoyed Authors

// encode_rs_char computes nroots parity symbols for data into bb.
//
// data may be shorter than nn-nroots.  A shortened code is the full
// length code with leading zeros, and leading zeros leave the shift
// register untouched, so they are simply not fed in.

func encode_rs_char(rs *rs_t, data []byte, bb []byte) {

	var nroots = rs.nroots
	var a0 = rs.a0()

	// Clear out the FEC data area
	for k := range bb {
		bb[k] = 0
	}

	if nroots == 0 {
		return
	}

	for i := range data {
		// feedback = INDEX_OF[data[i] ^ bb[0]]
		var feedback = rs.index_of[int(data[i]^bb[0])]

		if feedback != a0 { // feedback term is non-zero
			for j := 1; j < nroots; j++ {
				// bb[j] ^= ALPHA_TO[modnn(feedback + GENPOLY[NROOTS-j])]
				bb[j] ^= byte(rs.alpha_to[rs.modnn(feedback+rs.genpoly[nroots-j])])
			}
		}

		// Shift
		copy(bb, bb[1:nroots])

		// bb[NROOTS-1] = ...
		if feedback != a0 {
			bb[nroots-1] = byte(rs.alpha_to[rs.modnn(feedback+rs.genpoly[0])])
		} else {
			bb[nroots-1] = 0
		}
	}
}
