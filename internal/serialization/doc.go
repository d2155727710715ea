// Package serialization implements the .ffnt checkpoint format.
//
// A .ffnt file stores a flat state dictionary of float64 tensors together with
// a JSON header describing the run that produced it:
//
//	Format Structure:
//	  0x00  [4 bytes: Magic "FFNT"]
//	  0x04  [4 bytes: Version (uint32 LE)]
//	  0x08  [4 bytes: Flags (uint32 LE)]
//	  0x0C  [4 bytes: Reserved]
//	  0x10  [8 bytes: Header size (uint64 LE)]
//	  0x18  [8 bytes: Data size (uint64 LE)]
//	  0x20  [32 bytes: SHA-256 of the data section]
//	  0x40  [Header: JSON metadata]
//	        [Tensor data: float64 LE, 64-byte aligned]
//
// Tensors are written in name order, so the same state dictionary always
// produces the same data section and checksum.
//
// Example usage:
//
//	writer, err := serialization.NewWriter("model.ffnt")
//	if err != nil {
//	    return err
//	}
//	err = writer.WriteStateDict(net.StateDict(), serialization.Header{ModelName: net.Name()})
//	_ = writer.Close()
//
//	reader, err := serialization.NewReader("model.ffnt")
//	if err != nil {
//	    return err
//	}
//	defer reader.Close()
//	stateDict, err := reader.ReadStateDict()
package serialization
