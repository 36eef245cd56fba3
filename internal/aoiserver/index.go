package aoiserver

const indexHTML = `<!DOCTYPE html>
<html>
<head>
  <title>AOI Editor</title>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1.0"/>
  <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"/>
  <link rel="stylesheet" href="https://unpkg.com/leaflet-draw@1.0.4/dist/leaflet.draw.css"/>
  <style>
    html, body { height: 100%; margin: 0; }
    #map { height: 100%; }
    #panel {
      position: absolute; top: 10px; right: 10px; z-index: 1000;
      background: white; padding: 12px; border-radius: 4px;
      box-shadow: 0 1px 5px rgba(0,0,0,0.4); font-family: sans-serif;
    }
    #panel input { width: 180px; }
    #status { margin-top: 8px; font-size: 12px; }
  </style>
</head>
<body>
  <div id="map"></div>
  <div id="panel">
    <div><input id="name" placeholder="AOI name (e.g. AOI_kericho)"/></div>
    <div style="margin-top:8px"><button id="save">Save AOI</button></div>
    <div id="status"></div>
  </div>
  <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
  <script src="https://unpkg.com/leaflet-draw@1.0.4/dist/leaflet.draw.js"></script>
  <script>
    var map = L.map('map').setView([0, 36], 7);
    L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
      attribution: '&copy; OpenStreetMap contributors'
    }).addTo(map);

    var drawn = new L.FeatureGroup();
    map.addLayer(drawn);
    map.addControl(new L.Control.Draw({
      edit: { featureGroup: drawn },
      draw: { polygon: true, rectangle: true, circle: false, marker: false, polyline: false, circlemarker: false }
    }));

    map.on(L.Draw.Event.CREATED, function (e) {
      drawn.clearLayers();
      drawn.addLayer(e.layer);
    });

    document.getElementById('save').onclick = function () {
      var status = document.getElementById('status');
      var name = document.getElementById('name').value.trim();
      var layers = drawn.getLayers();
      if (!name) { status.textContent = 'enter a name'; return; }
      if (layers.length === 0) { status.textContent = 'draw a polygon first'; return; }

      fetch('/api/aoi', {
        method: 'POST',
        headers: { 'Content-Type': 'application/json' },
        body: JSON.stringify({ name: name, geometry: layers[0].toGeoJSON().geometry })
      }).then(function (resp) {
        return resp.json().then(function (body) {
          status.textContent = resp.ok ? 'saved ' + body.path : (body.error || 'save failed');
        });
      }).catch(function (err) { status.textContent = String(err); });
    };
  </script>
</body>
</html>
`
