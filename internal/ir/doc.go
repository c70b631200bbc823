// Package ir provides the intermediate representation shared by the tlcomm
// front-end, optimizer, store and printer.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps IR the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Every Call carries the Effect tag it was given by the front-end. Later
//     passes read the tag and never consult the intrinsic registry.
//   - Opaque calls are identified by Call.ID, not by their arguments. Two
//     syntactically identical opaque calls are distinct operations.
//   - NO float literals anywhere - integers are int64
//   - All JSON tags use snake_case
package ir
