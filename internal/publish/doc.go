// Package publish turns store changes into observer notifications.
//
// ObjectPublisher reports changes to single objects; ListPublisher keeps a
// sorted, sectioned snapshot of one entity and republishes it whenever the
// store changes it. Both hand out Handles from a Registry. The registry only
// holds weak pointers to handles: an observer that drops its handle is
// unsubscribed once the handle is collected, and the registry learns about
// it through a runtime cleanup. Callbacks must not reference their own
// handle, or it can never be collected.
package publish
