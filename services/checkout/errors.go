package checkout

import "errors"

// ErrNoPickupWindow means the store offered no selectable pickup
// window: either the search response carried no time slots at all, or
// every window across every candidate date was marked restricted. The
// offer cannot be ordered this cycle; it is not a protocol violation.
var ErrNoPickupWindow = errors.New("no selectable pickup window")
