package ultralink

/*------------------------------------------------------------------
 *
 * Purpose:	Forward error correction for one block.
 *
 * Description:	A block is messageBlockSize data bytes followed by
 *		eccBlockSize Reed-Solomon parity bytes.  The code is the
 *		RS(255, 255-ecc) code shortened by leading zeros, so it
 *		repairs up to ecc/2 wrong bytes anywhere in the block.
 *
 *		An ECC size of zero is allowed and means no protection.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
)

type Codec struct {
	msgSize int
	eccSize int
	rs      *rs_t // nil when eccSize is 0.
}

func NewCodec(messageBlockSize int, eccBlockSize int) (*Codec, error) {
	if messageBlockSize <= 0 || eccBlockSize < 0 || messageBlockSize+eccBlockSize > RS_BLOCK_SIZE {
		return nil, fmt.Errorf("%w: RS block %d+%d", ErrInvalidParameters, messageBlockSize, eccBlockSize)
	}

	var c = &Codec{msgSize: messageBlockSize, eccSize: eccBlockSize}

	if eccBlockSize > 0 {
		c.rs = rs_find(eccBlockSize)
		if c.rs == nil {
			return nil, fmt.Errorf("%w: cannot build RS codec with %d roots", ErrInvalidParameters, eccBlockSize)
		}
	}

	return c, nil
}

func (c *Codec) MessageSize() int { return c.msgSize }
func (c *Codec) BlockSize() int   { return c.msgSize + c.eccSize }

// Capacity is the guaranteed number of correctable byte errors per block.
func (c *Codec) Capacity() int {
	return c.eccSize / 2
}

// Encode appends parity to msg.  msg must be exactly MessageSize bytes.
func (c *Codec) Encode(msg []byte) ([]byte, error) {
	if len(msg) != c.msgSize {
		return nil, fmt.Errorf("fec encode: message is %d bytes, want %d", len(msg), c.msgSize)
	}

	var block = make([]byte, c.msgSize+c.eccSize)
	copy(block, msg)

	if c.rs != nil {
		encode_rs_char(c.rs, msg, block[c.msgSize:])
	}

	return block, nil
}

/*------------------------------------------------------------------
 *
 * Name:	Decode
 *
 * Purpose:	Recover the message from a possibly damaged block.
 *
 * Inputs:	block	- BlockSize bytes as received.  Not modified.
 *
 * Returns:	message, number of bytes corrected, nil
 *		or ErrUncorrectable.
 *
 * Description:	Besides the decoder's own failure detection we refuse:
 *
 *		- a "correction" of one of the implied leading zeros,
 *		  which can only happen when there were too many errors,
 *		- more corrections than the code guarantees.  With ecc of 1
 *		  the decoder would happily "fix" one byte, but a single
 *		  parity byte can only detect.
 *
 *---------------------------------------------------------------*/

func (c *Codec) Decode(block []byte) ([]byte, int, error) {
	var n = c.msgSize + c.eccSize
	if len(block) != n {
		return nil, 0, fmt.Errorf("fec decode: block is %d bytes, want %d", len(block), n)
	}

	if c.rs == nil {
		var msg = make([]byte, c.msgSize)
		copy(msg, block)
		return msg, 0, nil
	}

	//  Use zero padding in front if data size is too small.
	var pad = c.rs.nn - n
	var full = make([]byte, c.rs.nn)
	copy(full[pad:], block)

	var errlocs = make([]int, c.eccSize)
	var derrors = decode_rs_char(c.rs, full, errlocs)

	if derrors < 0 {
		return nil, 0, ErrUncorrectable
	}

	if derrors > c.Capacity() {
		return nil, 0, fmt.Errorf("%w: %d corrections exceed capacity %d", ErrUncorrectable, derrors, c.Capacity())
	}

	// It is possible to have a situation where too many errors are
	// present but the algorithm could get a good code block by "fixing"
	// one of the padding bytes that should be 0.
	for i := 0; i < derrors; i++ {
		if errlocs[i] < pad {
			return nil, 0, fmt.Errorf("%w: correction in padding at %d", ErrUncorrectable, errlocs[i])
		}
	}

	var msg = make([]byte, c.msgSize)
	copy(msg, full[pad:pad+c.msgSize])

	return msg, derrors, nil
}
