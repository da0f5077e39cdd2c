package types

// Version is the canonical project version.
// The CLI, the ipc stream and the stored records share this version.
const Version = "0.4.0"

// HeaderVersion is the raw data header layout version written by the
// synthesizer and accepted by the decoder.
const HeaderVersion = 5
