package ultralink

// SPDX-FileCopyrightText: 2002 Phil Karn, KA9Q
// SPDX-FileCopyrightText: 2007 Jim McGuire KB3MPL
// SPDX-FileCopyrightText: The Samoyed Authors

/*-------------------------------------------------------------
 *
 * Name:	decode_rs_char
 *
 * Purpose:	Check and correct a full length (nn symbol) block in place.
 *
 * Inputs:	rs	- Codec from rs_find.
 *		data	- nn symbols.  Shortened blocks are padded with
 *			  leading zeros by the caller.
 *
 * Outputs:	data	- Corrected in place.
 *		errlocs	- Positions corrected, if not nil.  Needs nroots room.
 *
 * Returns:	Number of symbols corrected, or -1 if the block is
 *		uncorrectable.
 *
 * Description:	Berlekamp-Massey for the error locator, Chien search for
 *		its roots, Forney for the error values.  No erasures.
 *
 *--------------------------------------------------------------*/

func decode_rs_char(rs *rs_t, data []byte, errlocs []int) int {

	var nn = rs.nn
	var nroots = rs.nroots
	var a0 = rs.a0()

	if nroots == 0 {
		return 0
	}

	var lambda = make([]int, nroots+1) // Err locator poly
	var s = make([]int, nroots)        // Syndrome poly
	var b = make([]int, nroots+1)
	var t = make([]int, nroots+1)
	var omega = make([]int, nroots+1)
	var root = make([]int, nroots)
	var reg = make([]int, nroots+1)
	var loc = make([]int, nroots)

	/* form the syndromes; i.e., evaluate data(x) at roots of g(x) */
	for i := 0; i < nroots; i++ {
		s[i] = int(data[0])
	}

	for j := 1; j < nn; j++ {
		for i := 0; i < nroots; i++ {
			if s[i] == 0 {
				s[i] = int(data[j])
			} else {
				s[i] = int(data[j]) ^ rs.alpha_to[rs.modnn(rs.index_of[s[i]]+(rs.fcr+i)*rs.prim)]
			}
		}
	}

	/* Convert syndromes to index form, checking for nonzero condition */
	var syn_error = 0
	for i := 0; i < nroots; i++ {
		syn_error |= s[i]
		s[i] = rs.index_of[s[i]]
	}

	if syn_error == 0 {
		/* if syndrome is zero, data[] is a codeword and there are no
		 * errors to correct. So return data[] unmodified
		 */
		return 0
	}

	lambda[0] = 1

	for i := 0; i < nroots+1; i++ {
		b[i] = rs.index_of[lambda[i]]
	}

	/*
	 * Begin Berlekamp-Massey algorithm to determine error
	 * locator polynomial
	 */
	var el = 0
	for r := 1; r <= nroots; r++ {
		/* Compute discrepancy at the r-th step in poly-form */
		var discr_r = 0
		for i := 0; i < r; i++ {
			if (lambda[i] != 0) && (s[r-i-1] != a0) {
				discr_r ^= rs.alpha_to[rs.modnn(rs.index_of[lambda[i]]+s[r-i-1])]
			}
		}
		discr_r = rs.index_of[discr_r] /* Index form */
		if discr_r == a0 {
			/* 2 lines below: B(x) <-- x*B(x) */
			copy(b[1:], b[:nroots])
			b[0] = a0
		} else {
			/* 7 lines below: T(x) <-- lambda(x) - discr_r*x*b(x) */
			t[0] = lambda[0]
			for i := 0; i < nroots; i++ {
				if b[i] != a0 {
					t[i+1] = lambda[i+1] ^ rs.alpha_to[rs.modnn(discr_r+b[i])]
				} else {
					t[i+1] = lambda[i+1]
				}
			}
			if 2*el <= r-1 {
				el = r - el
				/*
				 * 2 lines below: B(x) <-- inv(discr_r) *
				 * lambda(x)
				 */
				for i := 0; i <= nroots; i++ {
					if lambda[i] == 0 {
						b[i] = a0
					} else {
						b[i] = rs.modnn(rs.index_of[lambda[i]] - discr_r + nn)
					}
				}
			} else {
				/* 2 lines below: B(x) <-- x*B(x) */
				copy(b[1:], b[:nroots])
				b[0] = a0
			}
			copy(lambda, t)
		}
	}

	/* Convert lambda to index form and compute deg(lambda(x)) */
	var deg_lambda = 0
	for i := 0; i < nroots+1; i++ {
		lambda[i] = rs.index_of[lambda[i]]
		if lambda[i] != a0 {
			deg_lambda = i
		}
	}

	if deg_lambda == 0 {
		// Nonzero syndrome but nothing to locate.
		return -1
	}

	/* Find roots of the error locator polynomial by Chien search */
	copy(reg[1:], lambda[1:])
	var count = 0 /* Number of roots of lambda(x) */
	var k = rs.iprim - 1
	for i := 1; i <= nn; i, k = i+1, rs.modnn(k+rs.iprim) {
		var q = 1 /* lambda[0] is always 0 */
		for j := deg_lambda; j > 0; j-- {
			if reg[j] != a0 {
				reg[j] = rs.modnn(reg[j] + j)
				q ^= rs.alpha_to[reg[j]]
			}
		}
		if q != 0 {
			continue /* Not a root */
		}
		/* store root (index-form) and error location number */
		root[count] = i
		loc[count] = k
		/* If we've already found max possible roots,
		 * abort the search to save time
		 */
		count++
		if count == deg_lambda {
			break
		}
	}
	if deg_lambda != count {
		/*
		 * deg(lambda) unequal to number of roots => uncorrectable
		 * error detected
		 */
		return -1
	}

	/*
	 * Compute err evaluator poly omega(x) = s(x)*lambda(x) (modulo
	 * x**nroots). in index form. Also find deg(omega).
	 */
	var deg_omega = 0
	for i := 0; i < nroots; i++ {
		var tmp = 0
		for j := min(deg_lambda, i); j >= 0; j-- {
			if (s[i-j] != a0) && (lambda[j] != a0) {
				tmp ^= rs.alpha_to[rs.modnn(s[i-j]+lambda[j])]
			}
		}
		if tmp != 0 {
			deg_omega = i
		}
		omega[i] = rs.index_of[tmp]
	}
	omega[nroots] = a0

	/*
	 * Compute error values in poly-form. num1 = omega(inv(X(l))), num2 =
	 * inv(X(l))**(FCR-1) and den = lambda_pr(inv(X(l))) all in poly-form
	 */
	for j := count - 1; j >= 0; j-- {
		var num1 = 0
		for i := deg_omega; i >= 0; i-- {
			if omega[i] != a0 {
				num1 ^= rs.alpha_to[rs.modnn(omega[i]+i*root[j])]
			}
		}
		var num2 = rs.alpha_to[rs.modnn(root[j]*(rs.fcr-1)+nn)]
		var den = 0

		/* lambda[i+1] for i even is the formal derivative lambda_pr of lambda[i] */
		for i := min(deg_lambda, nroots-1) &^ 1; i >= 0; i -= 2 {
			if lambda[i+1] != a0 {
				den ^= rs.alpha_to[rs.modnn(lambda[i+1]+i*root[j])]
			}
		}
		if den == 0 {
			return -1
		}
		/* Apply error to data */
		if num1 != 0 {
			data[loc[j]] ^= byte(rs.alpha_to[rs.modnn(rs.index_of[num1]+rs.index_of[num2]+nn-rs.index_of[den])])
		}
	}

	if errlocs != nil {
		copy(errlocs, loc[:count])
	}
	return count
}
