package ultralink

// SPDX-FileCopyrightText: 2002 Phil Karn, KA9Q
// SPDX-FileCopyrightText: 2007 Jim McGuire KB3MPL
// SPDX-FileCopyrightText: The Samoyed Authors

// The Reed Solomon routines are based on work performed by Phil Karn,
// by way of the FX.25 encoder by Jim McGuire KB3MPL.
//
// Phil Karn's original copyright notice:
/* Test the Reed-Solomon codecs
 * for various block sizes and with random data and random error patterns
 *
 * Copyright 2002 Phil Karn, KA9Q
 * May be used under the terms of the GNU General Public License (GPL)
 *
 */

import (
	"sync"
)

// Same field and generator as FX.25.
const (
	RS_SYMSIZE = 8
	RS_GFPOLY  = 0x11d
	RS_FCR     = 1
	RS_PRIM    = 1
)

// Reed-Solomon codec control block.  All tables are read-only after init.
type rs_t struct {
	mm       int   // Bits per symbol.
	nn       int   // Symbols per block (= (1<<mm)-1).
	alpha_to []int // log lookup table.
	index_of []int // Antilog lookup table.  index_of[0] == nn (A0).
	genpoly  []int // Generator polynomial, index form.
	nroots   int   // Number of generator roots = number of parity symbols.
	fcr      int   // First consecutive root, index form.
	prim     int   // Primitive element, index form.
	iprim    int   // prim-th root of 1, index form.
}

// A0 in index form, i.e. log(0).
func (rs *rs_t) a0() int {
	return rs.nn
}

func (rs *rs_t) modnn(x int) int {
	for x >= rs.nn {
		x -= rs.nn
		x = (x >> rs.mm) + (x & rs.nn)
	}
	return x
}

/* Initialize a Reed-Solomon codec
 *   symsize = symbol size, bits (1-8) - always 8 for this application.
 *   gfpoly = Field generator polynomial coefficients
 *   fcr = first root of RS code generator polynomial, index form
 *   prim = primitive element to generate polynomial roots
 *   nroots = RS code generator polynomial degree (number of roots)
 */

func init_rs_char(symsize int, gfpoly int, fcr int, prim int, nroots int) *rs_t {
	if symsize > 8 {
		return nil // Need version with ints rather than chars
	}

	if fcr >= (1 << symsize) {
		return nil
	}
	if prim == 0 || prim >= (1<<symsize) {
		return nil
	}
	if nroots >= (1 << symsize) {
		return nil // Can't have more roots than symbol values!
	}

	var rs = new(rs_t)

	rs.mm = symsize
	rs.nn = (1 << symsize) - 1

	rs.alpha_to = make([]int, rs.nn+1)
	rs.index_of = make([]int, rs.nn+1)

	// Generate Galois field lookup tables
	rs.index_of[0] = rs.nn // log(zero) = -inf (A0)
	rs.alpha_to[rs.nn] = 0 // alpha**-inf = 0
	var sr = 1
	for i := 0; i < rs.nn; i++ {
		rs.index_of[sr] = i
		rs.alpha_to[i] = sr
		sr <<= 1
		if sr&(1<<symsize) != 0 {
			sr ^= gfpoly
		}
		sr &= rs.nn
	}
	if sr != 1 {
		// field generator polynomial is not primitive!
		return nil
	}

	// Form RS code generator polynomial from its roots
	rs.genpoly = make([]int, nroots+1)
	rs.fcr = fcr
	rs.prim = prim
	rs.nroots = nroots

	// Find prim-th root of 1, used in decoding
	var iprim = 1
	for (iprim % prim) != 0 {
		iprim += rs.nn
	}
	rs.iprim = iprim / prim

	rs.genpoly[0] = 1
	for i, root := 0, fcr*prim; i < nroots; i, root = i+1, root+prim {
		rs.genpoly[i+1] = 1

		// Multiply rs->genpoly[] by  @**(root + x)
		for j := i; j > 0; j-- {
			if rs.genpoly[j] != 0 {
				rs.genpoly[j] = rs.genpoly[j-1] ^ rs.alpha_to[rs.modnn(rs.index_of[rs.genpoly[j]]+root)]
			} else {
				rs.genpoly[j] = rs.genpoly[j-1]
			}
		}
		// rs->genpoly[0] can never be zero
		rs.genpoly[0] = rs.alpha_to[rs.modnn(rs.index_of[rs.genpoly[0]]+root)]
	}
	// convert rs->genpoly[] to index form for quicker encoding
	for i := 0; i <= nroots; i++ {
		rs.genpoly[i] = rs.index_of[rs.genpoly[i]]
	}

	return rs
}

// Codecs are built once per parity size and shared.

var rsCache = struct {
	sync.Mutex
	byRoots map[int]*rs_t
}{byRoots: make(map[int]*rs_t)}

func rs_find(nroots int) *rs_t {
	rsCache.Lock()
	defer rsCache.Unlock()

	if rs, ok := rsCache.byRoots[nroots]; ok {
		return rs
	}

	var rs = init_rs_char(RS_SYMSIZE, RS_GFPOLY, RS_FCR, RS_PRIM, nroots)
	if rs != nil {
		rsCache.byRoots[nroots] = rs
	}
	return rs
}
