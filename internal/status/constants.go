// internal/status/constants.go
package status

// Status block layout on the register mirror.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of logical slots per device.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the acquisition health code.
const SlotHealthCode = 0

// SlotLastErrorCode holds the last acquisition error code.
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) acquisition has not been live.
const SlotSecondsInError = 2

// SlotConsecutiveFailures holds the consecutive failed tick count (saturating).
const SlotConsecutiveFailures = 3

// ---- RESERVED RANGE ----

// Slots 4-10 are reserved for future use.
const SlotReservedStart = 4
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
// Device name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// ---- HEALTH CODES ----

// CodeUnknown: no acquisition attempt yet.
const CodeUnknown uint16 = 0

// CodeLive: last attempt succeeded.
const CodeLive uint16 = 1

// CodeDegraded: intermittent failures below the soft threshold.
const CodeDegraded uint16 = 2

// CodeDown: hard threshold exceeded, source in backoff.
const CodeDown uint16 = 3

// CodeStale: degraded at or beyond the soft threshold; the latest reading is stale.
const CodeStale uint16 = 4
