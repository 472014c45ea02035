// Package services activates the service instances exposed methods are
// invoked on.
//
// # Activation
//
// The dispatcher asks the Provider for an instance once per call, after
// authorization and before the filter stack runs. How the instance is
// produced depends on how the service was exposed and on the endpoint's
// activation method:
//
//   - Factory functions need no instance; Activate returns nil.
//   - Singleton activation reuses the exposed instance, or one lazily
//     constructed instance per type when a type was exposed.
//   - PerCall activation runs the registered constructor for the type, or
//     allocates a zero value when no constructor is registered. Services
//     exposed as an instance without a constructor reuse that instance.
//
// Instances created for a single call that implement io.Closer are closed
// when the call completes.
//
// # Constructors
//
// Register binds a constructor to a service type name:
//
//	provider := services.NewProvider()
//	provider.Register("Orders", func(ctx context.Context) (any, error) {
//	    return demo.NewOrders(store), nil
//	})
//
// The Provider is safe for concurrent use.
package services
