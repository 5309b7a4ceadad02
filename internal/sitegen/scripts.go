package sitegen

// trackingScript posts one page view per load. Any error is swallowed so the page never breaks.
func trackingScript(endpoint, subdomain string) string {
	return `<script>
(function(){
  try{
    var d={subdomain:` + jsString(subdomain) + `,path:location.pathname,referrer:document.referrer||""};
    fetch(` + jsString(endpoint) + `,{
      method:"POST",body:JSON.stringify(d),headers:{"Content-Type":"application/json"},
      keepalive:true
    }).catch(function(){});
  }catch(e){}
})();
</script>
`
}

// formHandlerScript intercepts every form carrying the marker attribute and sends its fields
// to the forms endpoint, replacing the form with a thank-you note on success.
func formHandlerScript(endpoint, siteID string) string {
	return `<script>
(function(){
  var forms=document.querySelectorAll('form[` + FormMarkerAttribute + `]');
  forms.forEach(function(f){
    f.addEventListener('submit',function(e){
      e.preventDefault();
      var btn=f.querySelector('button[type="submit"],input[type="submit"]');
      var origText=btn?btn.textContent:'';
      if(btn){btn.textContent='Sending...';btn.disabled=true;}
      var fd=new FormData(f);
      var data={};
      fd.forEach(function(v,k){data[k]=v;});
      var formName=f.getAttribute('` + FormMarkerAttribute + `')||'contact';
      fetch(` + jsString(endpoint) + `,{
        method:"POST",
        body:JSON.stringify({projectId:` + jsString(siteID) + `,formName:formName,formData:data}),
        headers:{"Content-Type":"application/json"}
      }).then(function(r){return r.json();}).then(function(j){
        if(j.ok){
          f.innerHTML='<div style="text-align:center;padding:40px 20px;"><p style="font-size:1.25rem;font-weight:700;color:#22c55e;margin-bottom:8px;">✓ Message Sent!</p><p style="color:#666;">Thank you! We will get back to you shortly.</p></div>';
        }else{
          if(btn){btn.textContent=origText;btn.disabled=false;}
          alert(j.error||'Something went wrong. Please try again.');
        }
      }).catch(function(){
        if(btn){btn.textContent=origText;btn.disabled=false;}
        alert('Network error. Please check your connection and try again.');
      });
    });
  });
})();
</script>
`
}
