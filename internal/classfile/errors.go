package classfile

import "errors"

var (
	// ErrMalformed indicates the bytes do not form a structurally valid class file.
	ErrMalformed = errors.New("classfile: malformed class")
	// ErrTruncated indicates a structure extends past the end of its buffer.
	ErrTruncated = errors.New("classfile: truncated buffer")
	// ErrCodeTooLarge indicates an edit pushed a method body or a branch
	// displacement past the limits of the class file format.
	ErrCodeTooLarge = errors.New("classfile: code too large")
	// ErrPoolOverflow indicates the constant pool cannot take another entry.
	ErrPoolOverflow = errors.New("classfile: constant pool overflow")
)
