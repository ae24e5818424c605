package hcas

import (
	"os"
)

// Main Higher-archichal content addressable storage (Hcas) interface
//
// Hcas provides an interface for accessing content addressed objects that may
// themselves reference other content addressable objects. This allows tree-like
// data to be stored nicely in a content addressable way.
//
// Hcas uses reference counting to determine when an object can be deleted.
// There are three ways an object can be referenced:
//  1. Another object directly references it
//  2. A label has been associated with it
//  3. An open session is referencing it
//
// If an object has none of the above references it may be garbage collected.
// You cannot directly delete an object in Hcas.
type Hcas interface {
	CreateSession() (Session, error)

	// Open the object as a read-only os.File object. The file will remain
	// readable even if the underlying object is later removed from HCAS.
	ObjectOpen(name Name) (*os.File, error)

	// Returns a path to the named object. This method does not ensure that the
	// named object actually exists.
	ObjectPath(name Name) string

	// Close all resources associated with the Hcas instance. All remaining open
	// sessions associated with this Hcas instance will automatically be
	// closed. No method on this or associated session objects may be called
	// again.
	Close() error

	// Collect garbage doing at most 'iterations' units of work in each of its
	// collection passes (expired sessions, unreferenced objects, temp files).
	// If 'iterations' is <= 0 this will continue until all garbage has been
	// collected.
	GarbageCollect(iterations int) (complete bool, err error)
}

// Represents a session in Hcas. Sessions are used to ensure that objects
// referenced in the session cannot be deleted for the lifetime of
// the session.
type Session interface {
	// Get the object name associated with the passed label. Returns the zero
	// Name and ok=false if no object is associated with the label.
	//
	// A reference to the returned object will be added into the session's
	// reference list.
	GetLabel(namespace string, label string) (name Name, ok bool, err error)

	// Set the object associated with the passed label. If name is nil the label
	// will be deleted.
	SetLabel(namespace string, label string, name *Name) error

	// Atomically set the label only if its current value matches test (nil
	// meaning "absent"). Returns whether the swap took place.
	TestAndSetLabel(namespace string, label string, test *Name, set *Name) (bool, error)

	// List every label set within namespace.
	ListLabels(namespace string) ([]string, error)

	// Create a new object with the passed 'data' and the associated dependencies.
	//
	// Returns the name of the created object and adds a reference to it into the
	// session's reference list.
	CreateObject(data []byte, deps ...Name) (Name, error)

	// Returns an ObjectWriter that allows the caller stream data into a newly
	// created object.
	//
	// After calling Close() the object will be created and a reference will be
	// added to the session's reference list.
	StreamObject(deps ...Name) (ObjectWriter, error)

	// Add an explicit reference to name into this session's reference list,
	// without creating or modifying any object. Used when a handler hydrates a
	// handle from an already-known name and needs to keep it alive for the
	// lifetime of the session.
	Hold(name Name) error

	// Mem reports whether an object with the given name exists.
	Mem(name Name) (bool, error)

	// Find reads back the full contents of a previously created object,
	// holding a session reference to it. ok is false if no such object
	// exists.
	Find(name Name) (data []byte, ok bool, err error)

	// UnsafeAdd creates an object using a caller-supplied name instead of one
	// derived from hashing data and deps. The caller is responsible for
	// having already verified that name is in fact the correct digest for
	// (data, deps); passing a name that does not match invites cache and
	// content-addressing corruption for every future reader of name.
	UnsafeAdd(name Name, data []byte, deps ...Name) error

	// Close this session and release any references held to any objects.
	Close() error
}

// Extended io.WriteCloser that allows the client to write into Hcas and access
// the final object name after closing.
type ObjectWriter interface {
	// Standard io.Writer Write() method
	Write(p []byte) (n int, err error)

	// Standard io.Closer Close() method
	Close() error

	// Call Name() after Close() to get the content addressable name of the object
	// written.
	Name() Name
}
